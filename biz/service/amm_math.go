package service

import (
	"math"

	"github.com/shopspring/decimal"
)

// 除法统一保留 18 位小数
const divPrecision = 18

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)
	ulp = decimal.New(1, -divPrecision)
)

// SwapQuote 一次兑换的计算结果，不含任何状态修改
type SwapQuote struct {
	AmountIn        decimal.Decimal `json:"amount_in"`
	AmountInWithFee decimal.Decimal `json:"amount_in_with_fee"`
	AmountOut       decimal.Decimal `json:"amount_out"`
	Fee             decimal.Decimal `json:"fee"`
	PriceImpact     decimal.Decimal `json:"price_impact"`
	// 兑换后池子储备：输入侧进入全额 amountIn
	ReserveIn  decimal.Decimal `json:"reserve_in"`
	ReserveOut decimal.Decimal `json:"reserve_out"`
}

// computeSwap 恒定乘积兑换：
//
//	amountInWithFee = amountIn * (1 - fee)
//	newReserveIn    = reserveIn + amountInWithFee
//	newReserveOut   = reserveIn * reserveOut / newReserveIn
//	amountOut       = reserveOut - newReserveOut
//	priceImpact     = 1 - (reserveIn/reserveOut) * (newReserveOut/newReserveIn)
//
// newReserveOut 向上取整，amountOut 因此只会向下舍入。
func computeSwap(reserveIn, reserveOut, amountIn, fee decimal.Decimal) SwapQuote {
	amountInWithFee := amountIn.Mul(one.Sub(fee))
	k := reserveIn.Mul(reserveOut)
	newReserveIn := reserveIn.Add(amountInWithFee)

	newReserveOut := k.DivRound(newReserveIn, divPrecision)
	if newReserveOut.Mul(newReserveIn).LessThan(k) {
		newReserveOut = newReserveOut.Add(ulp)
	}
	amountOut := reserveOut.Sub(newReserveOut)

	impact := one.Sub(reserveIn.Mul(newReserveOut).DivRound(reserveOut.Mul(newReserveIn), divPrecision))

	return SwapQuote{
		AmountIn:        amountIn,
		AmountInWithFee: amountInWithFee,
		AmountOut:       amountOut,
		Fee:             amountIn.Mul(fee),
		PriceImpact:     impact,
		ReserveIn:       reserveIn.Add(amountIn),
		ReserveOut:      reserveOut.Sub(amountOut),
	}
}

// ratioDeviation |amt0/amt1 - r0/r1| / (r0/r1)
func ratioDeviation(amt0, amt1, reserve0, reserve1 decimal.Decimal) decimal.Decimal {
	poolRatio := reserve0.DivRound(reserve1, divPrecision)
	given := amt0.DivRound(amt1, divPrecision)
	return given.Sub(poolRatio).Abs().DivRound(poolRatio, divPrecision)
}

// liquidityShare √(amt0·amt1)
func liquidityShare(amt0, amt1 decimal.Decimal) decimal.Decimal {
	return sqrtDecimal(amt0.Mul(amt1))
}

// sqrtDecimal 牛顿迭代，以 float64 结果作初值；超出 float64 范围时按数量级取初值
func sqrtDecimal(d decimal.Decimal) decimal.Decimal {
	if d.Sign() <= 0 {
		return decimal.Zero
	}
	var x decimal.Decimal
	f, _ := d.Float64()
	if root := math.Sqrt(f); root > 0 && !math.IsInf(root, 0) && !math.IsNaN(root) {
		x = decimal.NewFromFloat(root)
	} else {
		// d ≈ 10^(exp+digits)，初值误差在 10 倍以内
		x = decimal.New(1, (d.Exponent()+int32(d.NumDigits()))/2)
	}
	const workPrecision = divPrecision * 2
	eps := decimal.New(1, -(divPrecision + 4))
	for i := 0; i < 100; i++ {
		next := x.Add(d.DivRound(x, workPrecision)).DivRound(two, workPrecision)
		if next.Sub(x).Abs().LessThan(eps) {
			x = next
			break
		}
		x = next
	}
	return x.Round(divPrecision)
}
