package enums

// DiamondType is the product category chosen at order time.
type DiamondType string

const (
	DiamondTypeMemorial DiamondType = "纪念钻石"
	DiamondTypeCustom   DiamondType = "定制钻石"
	DiamondTypeSpecial  DiamondType = "特殊定制"
)

var validDiamondTypes = []DiamondType{
	DiamondTypeMemorial,
	DiamondTypeCustom,
	DiamondTypeSpecial,
}

// DiamondTypes lists the categories offered in the order form.
func DiamondTypes() []DiamondType {
	out := make([]DiamondType, len(validDiamondTypes))
	copy(out, validDiamondTypes)
	return out
}

// IsValid reports whether the value is a known DiamondType.
func (d DiamondType) IsValid() bool {
	for _, candidate := range validDiamondTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// DiamondSize is the carat weight class of the finished stone.
type DiamondSize string

const (
	DiamondSizeHalfCarat       DiamondSize = "0.5克拉"
	DiamondSizeOneCarat        DiamondSize = "1克拉"
	DiamondSizeOneAndHalfCarat DiamondSize = "1.5克拉"
	DiamondSizeTwoCarat        DiamondSize = "2克拉"
	DiamondSizeTwoAndHalfCarat DiamondSize = "2.5克拉"
	DiamondSizeThreeCarat      DiamondSize = "3克拉"
)

var validDiamondSizes = []DiamondSize{
	DiamondSizeHalfCarat,
	DiamondSizeOneCarat,
	DiamondSizeOneAndHalfCarat,
	DiamondSizeTwoCarat,
	DiamondSizeTwoAndHalfCarat,
	DiamondSizeThreeCarat,
}

// DiamondSizes lists the weight classes offered in the order form.
func DiamondSizes() []DiamondSize {
	out := make([]DiamondSize, len(validDiamondSizes))
	copy(out, validDiamondSizes)
	return out
}

// IsValid reports whether the value is a known DiamondSize.
func (d DiamondSize) IsValid() bool {
	for _, candidate := range validDiamondSizes {
		if candidate == d {
			return true
		}
	}
	return false
}
