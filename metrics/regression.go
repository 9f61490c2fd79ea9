// Package metrics は曲線予測（P×M 行列）の精度指標を提供する
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// checkPair は二つの行列の形状が一致し空でないことを確認する
func checkPair(op string, yTrue, yPred mat.Matrix) (rows, cols int, err error) {
	rows, cols = yTrue.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.NewValueError(op, "empty matrix")
	}
	rPred, cPred := yPred.Dims()
	if rPred != rows {
		return 0, 0, errors.NewDimensionError(op, rows, rPred, 0)
	}
	if cPred != cols {
		return 0, 0, errors.NewDimensionError(op, cols, cPred, 1)
	}
	return rows, cols, nil
}

// SSE は全要素の二乗誤差和（Sum of Squared Errors）を計算する
func SSE(yTrue, yPred mat.Matrix) (float64, error) {
	rows, cols, err := checkPair("SSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < rows; i++ {
		for k := 0; k < cols; k++ {
			diff := yTrue.At(i, k) - yPred.At(i, k)
			sum += diff * diff
		}
	}
	return sum, nil
}

// PerGridSSE はグリッド点（列）ごとの二乗誤差和を返す
func PerGridSSE(yTrue, yPred mat.Matrix) ([]float64, error) {
	rows, cols, err := checkPair("PerGridSSE", yTrue, yPred)
	if err != nil {
		return nil, err
	}

	out := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for k := 0; k < cols; k++ {
			diff := yTrue.At(i, k) - yPred.At(i, k)
			out[k] += diff * diff
		}
	}
	return out, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Matrix) (float64, error) {
	sse, err := SSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	r, c := yTrue.Dims()
	return sse / float64(r*c), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Matrix) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MaxAbsError は最大絶対誤差を計算する
func MaxAbsError(yTrue, yPred mat.Matrix) (float64, error) {
	rows, cols, err := checkPair("MaxAbsError", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var worst float64
	for i := 0; i < rows; i++ {
		for k := 0; k < cols; k++ {
			worst = math.Max(worst, math.Abs(yTrue.At(i, k)-yPred.At(i, k)))
		}
	}
	return worst, nil
}

// R2Score は決定係数（R²）を全要素について計算する
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	rows, cols, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	values := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		values = append(values, mat.Row(nil, i, yTrue)...)
	}
	mean := floats.Sum(values) / float64(len(values))

	var ssTot float64
	for _, v := range values {
		ssTot += (v - mean) * (v - mean)
	}
	ssRes, _ := SSE(yTrue, yPred)

	// 全要素が同一値の場合
	if ssTot == 0 {
		if ssRes == 0 {
			return 1.0, nil
		}
		return 0.0, nil
	}
	return 1.0 - ssRes/ssTot, nil
}

// Report は曲線予測の指標をまとめたもの
type Report struct {
	SSE         float64
	RMSE        float64
	MaxAbsError float64
	R2          float64
}

// Evaluate はすべての指標を一度に計算する
func Evaluate(yTrue, yPred mat.Matrix) (Report, error) {
	sse, err := SSE(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}
	rmse, _ := RMSE(yTrue, yPred)
	maxAbs, _ := MaxAbsError(yTrue, yPred)
	r2, _ := R2Score(yTrue, yPred)
	return Report{SSE: sse, RMSE: rmse, MaxAbsError: maxAbs, R2: r2}, nil
}
