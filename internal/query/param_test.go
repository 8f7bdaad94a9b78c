package query

import (
	"testing"
	"time"
)

func TestBindValue(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	local := time.Date(2024, 5, 1, 9, 0, 0, 0, jst)

	tests := []struct {
		name    string
		param   Param
		want    any
		wantErr bool
	}{
		{"int", Int("id", 5), int64(5), false},
		{"plain int value", Param{Name: "id", Type: TypeInt, Value: 5}, int64(5), false},
		{"text", Text("title", "milk"), "milk", false},
		{"bool", Bool("done", true), true, false},
		{"timestamp normalized to UTC", Timestamp("at", local), local.UTC(), false},
		{"null timestamp", NullTimestamp("at", nil), nil, false},
		{"non-null timestamp", NullTimestamp("at", &local), local.UTC(), false},
		{"int given text", Param{Name: "id", Type: TypeInt, Value: "5"}, nil, true},
		{"text given int", Param{Name: "title", Type: TypeText, Value: 5}, nil, true},
		{"bool given nil", Param{Name: "done", Type: TypeBool}, nil, true},
		{"unknown type", Param{Name: "x", Value: 1}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bindValue(tt.param)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ts, ok := tt.want.(time.Time); ok {
				gt, ok := got.(time.Time)
				if !ok || !gt.Equal(ts) || gt.Location() != time.UTC {
					t.Errorf("got %v, want %v in UTC", got, ts)
				}
				return
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBindMap_RejectsUnnamedAndDuplicate(t *testing.T) {
	if _, err := bindMap([]Param{{Type: TypeInt, Value: int64(1)}}); err == nil {
		t.Error("expected error for unnamed parameter")
	}
	if _, err := bindMap([]Param{Int("id", 1), Text("id", "x")}); err == nil {
		t.Error("expected error for duplicate parameter")
	}
}

func TestRow_Accessors(t *testing.T) {
	r := Row{"u_id": int64(4), "u_username": "ana", "small": int32(2)}

	if v, ok := r.Int64("u_id"); !ok || v != 4 {
		t.Errorf("Int64(u_id) = %d, %v", v, ok)
	}
	if v, ok := r.Int64("small"); !ok || v != 2 {
		t.Errorf("Int64(small) = %d, %v", v, ok)
	}
	if _, ok := r.Int64("u_username"); ok {
		t.Error("expected Int64 on text column to fail")
	}
	if v, ok := r.String("u_username"); !ok || v != "ana" {
		t.Errorf("String(u_username) = %q, %v", v, ok)
	}
	if _, ok := r.String("missing"); ok {
		t.Error("expected String on missing column to fail")
	}
}
