// Package errors はrdfgp全体のエラーハンドリングと警告システムを提供します。
// ハイパーパラメータ探索では候補ごとの失敗を回復可能なエラーとして扱い、
// 次元不一致などのプログラミングエラーは呼び出し元へそのまま伝播させます。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("rdfgp-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// IllConditionedWarning は共分散行列の条件数が大きく、数値的な信頼性が
// 低下していることを示す警告です。予測は継続されますが、結果の精度は保証されません。
type IllConditionedWarning struct {
	Op        string
	Condition float64
	Size      int
}

func (w *IllConditionedWarning) Error() string {
	return fmt.Sprintf("%s: covariance matrix of size %d is ill-conditioned (cond=%.3g); consider a larger noise variance",
		w.Op, w.Size, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *IllConditionedWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("operation", w.Op).
		Float64("condition", w.Condition).
		Int("size", w.Size).
		Str("type", "IllConditionedWarning")
}

// NewIllConditionedWarning は新しいIllConditionedWarningを作成します。
func NewIllConditionedWarning(op string, condition float64, size int) *IllConditionedWarning {
	return &IllConditionedWarning{Op: op, Condition: condition, Size: size}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
// 訓練データとクエリの列数の不一致はプログラミングエラーであり、回復対象ではありません。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("rdfgp: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// InvalidHyperparameterError は長さスケール・カーネル幅・ノイズ分散が不正な場合のエラーです。
// 探索ドライバでは該当候補を棄却するだけで、探索全体は継続します。
type InvalidHyperparameterError struct {
	Param  string
	Index  int // 長さスケールの次元。スカラーの場合は -1
	Value  float64
	Reason string
}

func (e *InvalidHyperparameterError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("rdfgp: invalid hyperparameter %s[%d]=%g: %s", e.Param, e.Index, e.Value, e.Reason)
	}
	return fmt.Sprintf("rdfgp: invalid hyperparameter %s=%g: %s", e.Param, e.Value, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InvalidHyperparameterError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Int("index", e.Index).
		Float64("value", e.Value).
		Str("reason", e.Reason).
		Str("type", "InvalidHyperparameterError")
}

// NewInvalidHyperparameterError は新しいInvalidHyperparameterErrorを作成し、スタックトレースを付与します。
func NewInvalidHyperparameterError(param string, index int, value float64, reason string) error {
	err := &InvalidHyperparameterError{Param: param, Index: index, Value: value, Reason: reason}
	return errors.WithStack(err)
}

// SingularMatrixError はノイズ正則化後も共分散行列が正定値にならなかった場合のエラーです。
// Fold はLOOの何番目の除外で発生したかを示します（全データの場合は -1）。
type SingularMatrixError struct {
	Op   string
	Size int
	Fold int
}

func (e *SingularMatrixError) Error() string {
	if e.Fold >= 0 {
		return fmt.Sprintf("rdfgp: %s: covariance matrix of size %d is not positive definite (leave-out fold %d)", e.Op, e.Size, e.Fold)
	}
	return fmt.Sprintf("rdfgp: %s: covariance matrix of size %d is not positive definite", e.Op, e.Size)
}

// Unwrap により errors.Is(err, ErrSingularMatrix) が成立します。
func (e *SingularMatrixError) Unwrap() error {
	return ErrSingularMatrix
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SingularMatrixError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("size", e.Size).
		Int("fold", e.Fold).
		Str("type", "SingularMatrixError")
}

// NewSingularMatrixError は新しいSingularMatrixErrorを作成し、スタックトレースを付与します。
func NewSingularMatrixError(op string, size, fold int) error {
	err := &SingularMatrixError{Op: op, Size: size, Fold: fold}
	return errors.WithStack(err)
}

// DegenerateParameterError はポテンシャルパラメータが物理的に未定義な値を取る場合のエラーです。
// 例えば反発指数 n が引力指数 6 と等しい場合、Mieポテンシャルの前因子は発散します。
type DegenerateParameterError struct {
	Param  string
	Row    int
	Value  float64
	Reason string
}

func (e *DegenerateParameterError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("rdfgp: degenerate physical parameter %s=%g: %s", e.Param, e.Value, e.Reason)
	}
	return fmt.Sprintf("rdfgp: degenerate physical parameter %s=%g in row %d: %s", e.Param, e.Value, e.Row, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DegenerateParameterError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Int("row", e.Row).
		Float64("value", e.Value).
		Str("reason", e.Reason).
		Str("type", "DegenerateParameterError")
}

// NewDegenerateParameterError は新しいDegenerateParameterErrorを作成し、スタックトレースを付与します。
func NewDegenerateParameterError(param string, row int, value float64, reason string) error {
	err := &DegenerateParameterError{Param: param, Row: row, Value: value, Reason: reason}
	return errors.WithStack(err)
}

// CandidateError はハイパーパラメータ探索の候補に紐づいたエラーです。
// ワーカーの完了順序に依存せず、元の候補インデックスを保持します。
type CandidateError struct {
	Index int
	Err   error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("rdfgp: candidate %d: %v", e.Index, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}

// NewCandidateError は新しいCandidateErrorを作成します。
func NewCandidateError(index int, err error) error {
	return &CandidateError{Index: index, Err: err}
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rdfgp: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("rdfgp: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// NaN、Infなどを検出します。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("rdfgp: numerical instability detected in %s. Values: [%s]", e.Operation, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64) error {
	err := &NumericalInstabilityError{Operation: operation, Values: values}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Join は複数のエラーを一つにまとめます。nilは無視されます。
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// IsRecoverable は探索ドライバが候補単位で回復できるエラーかどうかを判定します。
// 次元不一致は呼び出し側のバグなので回復対象外です。
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	var dimErr *DimensionError
	return !errors.As(err, &dimErr)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異行列の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")

	// ErrNotFitted はモデルが未学習の場合のエラーです。
	ErrNotFitted = New("model is not fitted")
)
