package models

// 字段按JSON键名的字母序声明,序列化结果即为键有序的文档

// Availability 卡牌可获得性
type Availability string

const (
	AvailabilityAvailable     Availability = "available"     // 可收集
	AvailabilityUncollectible Availability = "uncollectible" // 不可收集
)

// AllPositions 详情页标注为"Multiple"时使用的全部位置
var AllPositions = []string{"Ranged", "Melee", "Siege"}

// NoCost 表示"不适用"的费用值
const NoCost = -1

// Card 一张卡牌记录
type Card struct {
	Categories []string    `json:"categories"`       // 类型标签 (Type:)
	Faction    string      `json:"faction"`          // 阵营
	Flavor     string      `json:"flavor,omitempty"` // 风味文本,缺失时省略
	Info       string      `json:"info,omitempty"`   // 能力描述,缺失时省略
	Key        string      `json:"key"`              // 由Name派生的唯一键
	Loyalty    []string    `json:"loyalty"`          // 忠诚
	Name       string      `json:"name"`             // 名称 (必需)
	Positions  []string    `json:"positions"`        // 可放置位置
	Strength   int         `json:"strength"`         // 战力
	Type       string      `json:"type"`             // 分组 (Group:)
	Variations []Variation `json:"variations"`       // 变体,至少一个

	// SourceURL 抓取来源,不参与序列化
	SourceURL string `json:"-"`
}

// Variation 卡牌变体
type Variation struct {
	Art          Art          `json:"art"`
	Availability Availability `json:"availability"`
	Craft        CostPair     `json:"craft"`
	Mill         CostPair     `json:"mill"`
	Rarity       string       `json:"rarity"`
}

// CostPair 普通/高级费用对
type CostPair struct {
	Normal  int `json:"normal"`
	Premium int `json:"premium"`
}

// Art 卡图引用
type Art struct {
	FullsizeImage  string `json:"fullsizeImage"`
	ThumbnailImage string `json:"thumbnailImage"`
}

// UnknownCost 返回 {-1,-1}
func UnknownCost() CostPair {
	return CostPair{Normal: NoCost, Premium: NoCost}
}

// NewCard 创建带有默认值的卡牌,包含一个默认变体
func NewCard(name string) *Card {
	return &Card{
		Name:       name,
		Categories: []string{},
		Loyalty:    []string{},
		Positions:  []string{},
		Variations: []Variation{{
			Availability: AvailabilityAvailable,
			Craft:        UnknownCost(),
			Mill:         UnknownCost(),
		}},
	}
}

// PrimaryArtURL 返回第一个变体的原图地址,没有则返回空串
func (c *Card) PrimaryArtURL() string {
	if len(c.Variations) == 0 {
		return ""
	}
	return c.Variations[0].Art.FullsizeImage
}
