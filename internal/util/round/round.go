// Package round 提供十进制四舍五入，避免二进制浮点在第 4 位小数上的偏差。
package round

import (
	"math"

	"github.com/shopspring/decimal"
)

// Places 统一的输出精度
const Places = 4

// Round4 将 v 四舍五入到 4 位小数（远离零方向）
// 非有限值原样返回
func Round4(v float64) float64 {
	return To(v, Places)
}

// To 将 v 四舍五入到 places 位小数
func To(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	// 避免输出 -0
	if f == 0 {
		return 0
	}
	return f
}

// Ptr 对可选数值做 4 位小数舍入，nil 保持 nil
func Ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := Round4(*v)
	return &r
}
