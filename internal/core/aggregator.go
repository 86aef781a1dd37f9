package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/RecoveryAshes/arachas/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrKeyCollision 不同名称的卡牌生成了相同的键
var ErrKeyCollision = errors.New("卡牌键冲突")

// CollisionPolicy 键冲突的处理方式
type CollisionPolicy string

const (
	CollisionWarn   CollisionPolicy = "warn"   // 保留最后一个并记录警告
	CollisionIgnore CollisionPolicy = "ignore" // 保留最后一个
	CollisionReject CollisionPolicy = "reject" // 返回 ErrKeyCollision
)

// ParseCollisionPolicy 解析配置值,空串为 warn
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch p := CollisionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return CollisionWarn, nil
	case CollisionWarn, CollisionIgnore, CollisionReject:
		return p, nil
	default:
		return "", fmt.Errorf("无效的键冲突策略: %s (有效值: warn, ignore, reject)", s)
	}
}

// Collision 一个键对应的多个名称
type Collision struct {
	Key   string
	Names []string // 有序,最后一个被保留
}

// Aggregator 多个worker并发写入的卡牌收集器
type Aggregator struct {
	mu     sync.Mutex
	cards  []*models.Card
	policy CollisionPolicy

	collisions []Collision
}

// NewAggregator 创建收集器
func NewAggregator(policy CollisionPolicy) *Aggregator {
	if policy == "" {
		policy = CollisionWarn
	}
	return &Aggregator{policy: policy}
}

// Add 添加一张卡牌,并发安全
func (a *Aggregator) Add(card *models.Card) {
	a.mu.Lock()
	a.cards = append(a.cards, card)
	a.mu.Unlock()
}

// Len 已收集的卡牌数 (去重前)
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cards)
}

// Collisions 最近一次 Sorted 发现的冲突
func (a *Aggregator) Collisions() []Collision {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Collision(nil), a.collisions...)
}

// Sorted 按名称字节序排序 (名称相同时按来源URL),再按键去重保留最后一个
// 不同名称映射到同一个键时按冲突策略处理
func (a *Aggregator) Sorted() ([]*models.Card, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cards := append([]*models.Card(nil), a.cards...)
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Name != cards[j].Name {
			return cards[i].Name < cards[j].Name
		}
		return cards[i].SourceURL < cards[j].SourceURL
	})

	last := make(map[string]int, len(cards))
	names := make(map[string][]string)
	for i, card := range cards {
		if prev, ok := last[card.Key]; ok && cards[prev].Name != card.Name {
			if len(names[card.Key]) == 0 {
				names[card.Key] = []string{cards[prev].Name}
			}
			names[card.Key] = append(names[card.Key], card.Name)
		}
		last[card.Key] = i
	}

	a.collisions = a.collisions[:0]
	for key, ns := range names {
		a.collisions = append(a.collisions, Collision{Key: key, Names: ns})
	}
	sort.Slice(a.collisions, func(i, j int) bool { return a.collisions[i].Key < a.collisions[j].Key })

	if len(a.collisions) > 0 {
		switch a.policy {
		case CollisionReject:
			c := a.collisions[0]
			return nil, fmt.Errorf("%w: %s <- %s (共%d个)", ErrKeyCollision, c.Key, strings.Join(c.Names, ", "), len(a.collisions))
		case CollisionWarn:
			for _, c := range a.collisions {
				log.Warn().Str("key", c.Key).Strs("names", c.Names).Msg("⚠️  不同名称生成了相同的键,保留最后一个")
			}
		}
	}

	result := make([]*models.Card, 0, len(last))
	for i, card := range cards {
		if last[card.Key] == i {
			result = append(result, card)
		}
	}
	return result, nil
}
