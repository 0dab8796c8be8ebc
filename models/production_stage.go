package models

// ProductionStage is one entry of the global, ordered stage catalog.
// Every new order gets one StageProgress per active catalog entry.
type ProductionStage struct {
	StageID       string `gorm:"primaryKey;size:32" json:"stage_id"`
	Name          string `gorm:"not null" json:"name"`
	Description   string `json:"description"`
	StageOrder    int    `gorm:"not null;uniqueIndex" json:"stage_order"`
	EstimatedDays int    `gorm:"not null;default:1" json:"estimated_days"`
	IsActive      bool   `gorm:"not null;default:true" json:"is_active"`
}

// TableName specifies the table name for the ProductionStage model
func (ProductionStage) TableName() string {
	return "production_stages"
}

// DefaultProductionStages returns the catalog seeded into an empty database
func DefaultProductionStages() []ProductionStage {
	return []ProductionStage{
		{StageID: "STAGE001", Name: "进入实验室", Description: "原料进入专业实验室，准备制作环境", StageOrder: 1, EstimatedDays: 1, IsActive: true},
		{StageID: "STAGE002", Name: "碳化提纯", Description: "对原料进行碳化处理和提纯工艺", StageOrder: 2, EstimatedDays: 2, IsActive: true},
		{StageID: "STAGE003", Name: "石墨化", Description: "钻石结构转换和石墨化处理", StageOrder: 3, EstimatedDays: 2, IsActive: true},
		{StageID: "STAGE004", Name: "高温高压培育生长", Description: "在高温高压环境下培育钻石生长", StageOrder: 4, EstimatedDays: 15, IsActive: true},
		{StageID: "STAGE005", Name: "钻胚提取", Description: "提取钻石毛胚，进行初步成型", StageOrder: 5, EstimatedDays: 3, IsActive: true},
		{StageID: "STAGE006", Name: "切割", Description: "精密切割钻石，塑造最终形状", StageOrder: 6, EstimatedDays: 5, IsActive: true},
		{StageID: "STAGE007", Name: "认证溯源", Description: "钻石质量认证和溯源证书制作", StageOrder: 7, EstimatedDays: 3, IsActive: true},
		{StageID: "STAGE008", Name: "镶嵌钻石", Description: "将钻石镶嵌到指定位置，完成最终产品", StageOrder: 8, EstimatedDays: 4, IsActive: true},
	}
}

// TotalEstimatedDays sums the estimated duration of the given stages
func TotalEstimatedDays(stages []ProductionStage) int {
	total := 0
	for _, stage := range stages {
		total += stage.EstimatedDays
	}
	return total
}
