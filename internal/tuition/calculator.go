// Package tuition 学费计算：基础学费、提前缴费折扣与定金。
//
// 所有结果仅由存储数据（学费、折扣额、通知创建时间）与当前时间决定，
// 任意时刻都可以复算出同一金额。
package tuition

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Plan 缴费方式
type Plan string

const (
	PlanDeposit   Plan = "DEPOSIT"
	PlanFirstYear Plan = "FIRST_YEAR"
)

var hundred = decimal.NewFromInt(100)

// Policy 折扣与定金规则
type Policy struct {
	EarlyPaymentWindowDays      int
	EarlyPaymentDiscountPercent decimal.Decimal
	DepositPercent              decimal.Decimal
}

// DefaultPolicy 14 天内缴清首年学费享 25% 折扣，定金为原价 50%
func DefaultPolicy() Policy {
	return Policy{
		EarlyPaymentWindowDays:      14,
		EarlyPaymentDiscountPercent: decimal.NewFromInt(25),
		DepositPercent:              decimal.NewFromInt(50),
	}
}

// ParsePolicy 从配置字符串构造 Policy
func ParsePolicy(windowDays int, discountPercent, depositPercent string) (Policy, error) {
	if windowDays < 0 {
		return Policy{}, fmt.Errorf("提前缴费窗口天数不能为负: %d", windowDays)
	}
	discount, err := decimal.NewFromString(discountPercent)
	if err != nil {
		return Policy{}, fmt.Errorf("折扣比例无效 %q: %w", discountPercent, err)
	}
	deposit, err := decimal.NewFromString(depositPercent)
	if err != nil {
		return Policy{}, fmt.Errorf("定金比例无效 %q: %w", depositPercent, err)
	}
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return Policy{}, fmt.Errorf("折扣比例必须在 0-100 之间: %s", discount)
	}
	if deposit.IsNegative() || deposit.GreaterThan(hundred) {
		return Policy{}, fmt.Errorf("定金比例必须在 0-100 之间: %s", deposit)
	}
	return Policy{
		EarlyPaymentWindowDays:      windowDays,
		EarlyPaymentDiscountPercent: discount,
		DepositPercent:              deposit,
	}, nil
}

// Round 四舍五入到整数货币单位
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// Calculator 学费计算器（无副作用）
type Calculator struct {
	policy     Policy
	fees       FeeTable
	categories CategoryMap
}

// NewCalculator 创建计算器；fees/categories 为 nil 时使用默认表
func NewCalculator(policy Policy, fees FeeTable, categories CategoryMap) *Calculator {
	if fees == nil {
		fees = DefaultFeeTable()
	}
	if categories == nil {
		categories = DefaultSchoolCategories()
	}
	return &Calculator{policy: policy, fees: fees, categories: categories}
}

// Policy 返回当前规则
func (c *Calculator) Policy() Policy { return c.policy }

// CategoryFor 学院 → 收费类别
func (c *Calculator) CategoryFor(school string) FeeCategory {
	return c.categories.CategoryFor(school)
}

// BaseFee 按学位层次与学院查询基础学费
func (c *Calculator) BaseFee(level DegreeLevel, school string) (decimal.Decimal, FeeCategory, error) {
	cat := c.CategoryFor(school)
	fee, err := c.fees.BaseFee(level, cat)
	if err != nil {
		return decimal.Zero, cat, err
	}
	return fee, cat, nil
}

// Breakdown 某一时刻的完整费用拆分
type Breakdown struct {
	BaseFee         decimal.Decimal
	DiscountedFee   decimal.Decimal // 首年/全额路径应缴金额
	DiscountAmount  decimal.Decimal
	Deposit         decimal.Decimal
	EarlyWindowOpen bool
}

// Compute (学位层次, 收费类别, 通知创建时间, 当前时间) → 学费/折扣/定金
func (c *Calculator) Compute(level DegreeLevel, category FeeCategory, createdAt, now time.Time) (Breakdown, error) {
	base, err := c.fees.BaseFee(level, category)
	if err != nil {
		return Breakdown{}, err
	}
	b := Breakdown{
		BaseFee:         base,
		DiscountedFee:   base,
		DiscountAmount:  decimal.Zero,
		Deposit:         c.Deposit(base),
		EarlyWindowOpen: c.InEarlyWindow(createdAt, now),
	}
	if b.EarlyWindowOpen {
		b.DiscountedFee = c.discounted(base)
		b.DiscountAmount = base.Sub(b.DiscountedFee)
	}
	return b, nil
}

// OfferFee 录取通知上展示的学费（已扣除提前缴费折扣）
type OfferFee struct {
	OriginalFee    decimal.Decimal
	TuitionFee     decimal.Decimal
	DiscountAmount decimal.Decimal
}

// HeadlineFee 以基础学费计算录取通知的展示学费；通知创建时折扣窗口总是开启的
func (c *Calculator) HeadlineFee(base decimal.Decimal) OfferFee {
	fee := c.discounted(base)
	return OfferFee{
		OriginalFee:    base,
		TuitionFee:     fee,
		DiscountAmount: base.Sub(fee),
	}
}

// EarlyWindowEndsAt 提前缴费窗口截止时间
func (c *Calculator) EarlyWindowEndsAt(createdAt time.Time) time.Time {
	return createdAt.AddDate(0, 0, c.policy.EarlyPaymentWindowDays)
}

// InEarlyWindow now ≤ createdAt + N 天
func (c *Calculator) InEarlyWindow(createdAt, now time.Time) bool {
	return !now.After(c.EarlyWindowEndsAt(createdAt))
}

// Deposit 定金始终按原价计算，不受提前缴费折扣影响
func (c *Calculator) Deposit(originalFee decimal.Decimal) decimal.Decimal {
	return Round(originalFee.Mul(c.policy.DepositPercent).Div(hundred))
}

func (c *Calculator) discounted(base decimal.Decimal) decimal.Decimal {
	factor := hundred.Sub(c.policy.EarlyPaymentDiscountPercent).Div(hundred)
	return Round(base.Mul(factor))
}

// QuoteInput 复算应缴金额所需的存储数据
type QuoteInput struct {
	TuitionFee     decimal.Decimal // 通知上存储的展示学费
	DiscountAmount decimal.Decimal // 通知上存储的折扣额
	OfferCreatedAt time.Time
	Now            time.Time
	Plan           Plan
}

// Quote 应缴金额
type Quote struct {
	Plan              Plan
	OriginalFee       decimal.Decimal
	Amount            decimal.Decimal
	DiscountApplied   decimal.Decimal
	Deposit           decimal.Decimal
	EarlyWindowOpen   bool
	EarlyWindowEndsAt time.Time
}

// Quote 计算某一缴费方式在 now 时刻的应缴金额
//
//   - DEPOSIT：round(原价 × 定金比例)，任何时刻相同
//   - FIRST_YEAR：窗口内为通知展示学费，窗口外为原价（展示学费 + 折扣额）
func (c *Calculator) Quote(in QuoteInput) (Quote, error) {
	original := in.TuitionFee.Add(in.DiscountAmount)
	q := Quote{
		Plan:              in.Plan,
		OriginalFee:       original,
		Deposit:           c.Deposit(original),
		EarlyWindowOpen:   c.InEarlyWindow(in.OfferCreatedAt, in.Now),
		EarlyWindowEndsAt: c.EarlyWindowEndsAt(in.OfferCreatedAt),
		DiscountApplied:   decimal.Zero,
	}

	switch in.Plan {
	case PlanDeposit:
		q.Amount = q.Deposit
	case PlanFirstYear:
		if q.EarlyWindowOpen {
			q.Amount = in.TuitionFee
			q.DiscountApplied = in.DiscountAmount
		} else {
			q.Amount = original
		}
	default:
		return Quote{}, fmt.Errorf("未知的缴费方式 %q", in.Plan)
	}
	return q, nil
}
