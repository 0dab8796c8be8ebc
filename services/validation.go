package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kendall-kelly/memorial-diamonds-api/apperrors"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/utils"
	"go.uber.org/multierr"
)

// DefaultPhoneLength is the mainland mobile number length.
const DefaultPhoneLength = 11

// OrderData is the input for creating an order.
type OrderData struct {
	CustomerName        string     `json:"customer_name" validate:"required"`
	CustomerPhone       string     `json:"customer_phone" validate:"required,phone"`
	DiamondType         string     `json:"diamond_type" validate:"required,diamond_type"`
	DiamondSize         string     `json:"diamond_size" validate:"required,diamond_size"`
	CustomerEmail       string     `json:"customer_email" validate:"omitempty,email"`
	SpecialRequirements string     `json:"special_requirements"`
	EstimatedCompletion *time.Time `json:"estimated_completion"`
	Notes               string     `json:"notes"`
}

func (d OrderData) trimmed() OrderData {
	d.CustomerName = strings.TrimSpace(d.CustomerName)
	d.CustomerPhone = strings.TrimSpace(d.CustomerPhone)
	d.DiamondType = strings.TrimSpace(d.DiamondType)
	d.DiamondSize = strings.TrimSpace(d.DiamondSize)
	d.CustomerEmail = strings.TrimSpace(d.CustomerEmail)
	return d
}

// ToModel builds the order row for the store. Number, status and progress are set on insert.
func (d OrderData) ToModel() *models.Order {
	d = d.trimmed()
	order := &models.Order{
		CustomerName:        d.CustomerName,
		CustomerPhone:       d.CustomerPhone,
		DiamondType:         enums.DiamondType(d.DiamondType),
		DiamondSize:         enums.DiamondSize(d.DiamondSize),
		EstimatedCompletion: d.EstimatedCompletion,
	}
	if d.CustomerEmail != "" {
		order.CustomerEmail = &d.CustomerEmail
	}
	if d.SpecialRequirements != "" {
		order.SpecialRequirements = &d.SpecialRequirements
	}
	if d.Notes != "" {
		order.Notes = &d.Notes
	}
	return order
}

// OrderValidator checks order input without touching the store.
type OrderValidator struct {
	validate    *validator.Validate
	phoneLength int
}

// NewOrderValidator creates a validator for phone numbers of the given length.
func NewOrderValidator(phoneLength int) *OrderValidator {
	if phoneLength <= 0 {
		phoneLength = DefaultPhoneLength
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	err := registerValidations(v, []customValidation{
		{tag: "phone", fn: func(fl validator.FieldLevel) bool {
			phone := fl.Field().String()
			return len(phone) == phoneLength && utils.IsDigits(phone)
		}},
		{tag: "diamond_type", fn: func(fl validator.FieldLevel) bool {
			return enums.DiamondType(fl.Field().String()).IsValid()
		}},
		{tag: "diamond_size", fn: func(fl validator.FieldLevel) bool {
			return enums.DiamondSize(fl.Field().String()).IsValid()
		}},
	})
	if err != nil {
		panic(fmt.Sprintf("order validator: %v", err))
	}
	return &OrderValidator{validate: v, phoneLength: phoneLength}
}

type customValidation struct {
	tag string
	fn  validator.Func
}

func registerValidations(v *validator.Validate, validations []customValidation) error {
	var err error
	for _, cv := range validations {
		if regErr := v.RegisterValidation(cv.tag, cv.fn); regErr != nil {
			err = multierr.Append(err, fmt.Errorf("register %q: %w", cv.tag, regErr))
		}
	}
	return err
}

var defaultOrderValidator = NewOrderValidator(DefaultPhoneLength)

// ValidateOrderData reports whether data is acceptable and, if not, why.
func ValidateOrderData(data OrderData) (bool, string) {
	return defaultOrderValidator.Check(data)
}

// Check returns (true, "") or (false, message). Missing required fields are
// reported before format problems, in field order.
func (v *OrderValidator) Check(data OrderData) (bool, string) {
	data = data.trimmed()
	err := v.validate.Struct(data)
	if err == nil {
		return true, ""
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return false, err.Error()
	}
	for _, fe := range errs {
		if fe.Tag() == "required" {
			return false, fmt.Sprintf("缺少必填字段：%s", fe.Field())
		}
	}
	fe := errs[0]
	switch fe.Tag() {
	case "phone":
		return false, v.phoneMessage()
	case "diamond_type":
		return false, fmt.Sprintf("不支持的钻石类型：%v", fe.Value())
	case "diamond_size":
		return false, fmt.Sprintf("不支持的钻石大小：%v", fe.Value())
	case "email":
		return false, "邮箱格式不正确"
	}
	return false, fmt.Sprintf("字段格式不正确：%s", fe.Field())
}

// Validate is Check as a coded validation error.
func (v *OrderValidator) Validate(data OrderData) error {
	if ok, msg := v.Check(data); !ok {
		return apperrors.New(apperrors.CodeValidation, msg)
	}
	return nil
}

// ValidatePhone checks a single phone number, e.g. on update.
func (v *OrderValidator) ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperrors.New(apperrors.CodeValidation, "缺少必填字段：customer_phone")
	}
	if err := v.validate.Var(phone, "phone"); err != nil {
		return apperrors.New(apperrors.CodeValidation, v.phoneMessage())
	}
	return nil
}

func (v *OrderValidator) phoneMessage() string {
	return fmt.Sprintf("电话号码格式不正确（应为%d位数字）", v.phoneLength)
}
