package tuition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DegreeLevel 学位层次
type DegreeLevel string

const (
	DegreeBachelor DegreeLevel = "BACHELOR"
	DegreeMaster   DegreeLevel = "MASTER"
)

// FeeCategory 收费类别，由学院映射得到
type FeeCategory string

const (
	CategoryStandard   FeeCategory = "STANDARD"
	CategoryTechnology FeeCategory = "TECHNOLOGY"
	CategoryHealth     FeeCategory = "HEALTH"
	CategoryCreative   FeeCategory = "CREATIVE"
)

// ErrFeeNotConfigured 学费表中缺少对应的学位层次/收费类别
var ErrFeeNotConfigured = errors.New("学费表未配置该学位层次与收费类别")

// FeeTable 年度学费表：学位层次 → 收费类别 → 金额
type FeeTable map[DegreeLevel]map[FeeCategory]decimal.Decimal

// DefaultFeeTable 默认学费表（欧元/学年）
func DefaultFeeTable() FeeTable {
	return FeeTable{
		DegreeBachelor: {
			CategoryStandard:   decimal.NewFromInt(10000),
			CategoryTechnology: decimal.NewFromInt(12000),
			CategoryHealth:     decimal.NewFromInt(14000),
			CategoryCreative:   decimal.NewFromInt(9000),
		},
		DegreeMaster: {
			CategoryStandard:   decimal.NewFromInt(15000),
			CategoryTechnology: decimal.NewFromInt(16500),
			CategoryHealth:     decimal.NewFromInt(18000),
			CategoryCreative:   decimal.NewFromInt(12000),
		},
	}
}

// BaseFee 查询基础学费
func (t FeeTable) BaseFee(level DegreeLevel, category FeeCategory) (decimal.Decimal, error) {
	byCategory, ok := t[level]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s/%s", ErrFeeNotConfigured, level, category)
	}
	fee, ok := byCategory[category]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s/%s", ErrFeeNotConfigured, level, category)
	}
	return fee, nil
}

// Override 用配置中的字符串金额覆盖默认表，返回新表
func (t FeeTable) Override(raw map[string]map[string]string) (FeeTable, error) {
	out := make(FeeTable, len(t))
	for level, byCategory := range t {
		out[level] = make(map[FeeCategory]decimal.Decimal, len(byCategory))
		for cat, fee := range byCategory {
			out[level][cat] = fee
		}
	}
	for level, byCategory := range raw {
		lv := DegreeLevel(strings.ToUpper(level))
		if out[lv] == nil {
			out[lv] = make(map[FeeCategory]decimal.Decimal)
		}
		for cat, amount := range byCategory {
			fee, err := decimal.NewFromString(amount)
			if err != nil {
				return nil, fmt.Errorf("学费表金额无效 %s/%s=%q: %w", level, cat, amount, err)
			}
			if fee.IsNegative() {
				return nil, fmt.Errorf("学费表金额不能为负 %s/%s", level, cat)
			}
			out[lv][FeeCategory(strings.ToUpper(cat))] = fee
		}
	}
	return out, nil
}

// CategoryMap 学院（slug 或名称）→ 收费类别
type CategoryMap map[string]FeeCategory

// DefaultSchoolCategories 默认学院映射
func DefaultSchoolCategories() CategoryMap {
	return CategoryMap{
		"school-of-business":    CategoryStandard,
		"school-of-law":         CategoryStandard,
		"school-of-engineering": CategoryTechnology,
		"school-of-computing":   CategoryTechnology,
		"school-of-medicine":    CategoryHealth,
		"school-of-nursing":     CategoryHealth,
		"school-of-design":      CategoryCreative,
		"school-of-arts":        CategoryCreative,
	}
}

// With 合并配置覆盖项，返回新映射
func (m CategoryMap) With(raw map[string]string) CategoryMap {
	out := make(CategoryMap, len(m)+len(raw))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range raw {
		out[normalizeSchool(k)] = FeeCategory(strings.ToUpper(v))
	}
	return out
}

// CategoryFor 映射学院到收费类别；未登记的学院按 STANDARD 收费
func (m CategoryMap) CategoryFor(school string) FeeCategory {
	if cat, ok := m[normalizeSchool(school)]; ok {
		return cat
	}
	return CategoryStandard
}

// normalizeSchool "School of Engineering" → "school-of-engineering"
func normalizeSchool(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "-")
}
