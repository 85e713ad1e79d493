// Package model はドメインモデルを定義する。
package model

import "encoding/json"

// Optional はリクエストの部分更新フィールドを表す3値の型。
//
//   - 未指定: Set == false（既存の値を維持する）
//   - null指定: Set == true && Null == true（値をクリアする）
//   - 値指定: Set == true && Null == false（Valueで上書きする）
//
// JSONのキー自体が無い場合はUnmarshalJSONが呼ばれないため未指定として扱われる。
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some は値指定のOptionalを返す。
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null はnull指定のOptionalを返す。
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// HasValue は値が指定されている（nullでない）かどうかを返す。
func (o Optional[T]) HasValue() bool {
	return o.Set && !o.Null
}

// Ptr は値指定の場合は値へのポインタ、それ以外はnilを返す。
func (o Optional[T]) Ptr() *T {
	if !o.HasValue() {
		return nil
	}
	v := o.Value
	return &v
}

// Apply はOptionalを既存値に適用した結果を返す。
// 未指定なら既存値をそのまま返し、null指定ならnilを返す。
func (o Optional[T]) Apply(current *T) *T {
	if !o.Set {
		return current
	}
	return o.Ptr()
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}
