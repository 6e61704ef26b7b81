package sqlbuild

import (
	"reflect"
	"testing"
)

func TestBuilder_Where(t *testing.T) {
	tests := []struct {
		name       string
		build      func(b *Builder)
		wantClause string
		wantArgs   []any
	}{
		{
			name:       "no conditions",
			build:      func(b *Builder) {},
			wantClause: "",
			wantArgs:   nil,
		},
		{
			name: "single equality",
			build: func(b *Builder) {
				b.Where("disease_type", "leaf")
			},
			wantClause: " WHERE disease_type = $1",
			wantArgs:   []any{"leaf"},
		},
		{
			name: "chained conditions keep placeholder order",
			build: func(b *Builder) {
				b.Where("disease_type", "fruit").Where("is_verified", true).WhereAny("id", []int64{1, 2})
			},
			wantClause: " WHERE disease_type = $1 AND is_verified = $2 AND id = ANY($3)",
			wantArgs:   []any{"fruit", true, []int64{1, 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Builder
			tt.build(&b)
			if got := b.Clause(); got != tt.wantClause {
				t.Errorf("Clause() = %q, want %q", got, tt.wantClause)
			}
			if !reflect.DeepEqual(b.Args(), tt.wantArgs) {
				t.Errorf("Args() = %v, want %v", b.Args(), tt.wantArgs)
			}
		})
	}
}

func TestBuilder_SetThenWhere(t *testing.T) {
	var b Builder
	set := b.Set(map[string]any{
		"predicted_class": "Healthy",
		"is_verified":     true,
	})
	b.WhereAny("id", []int64{7})

	if set != "is_verified = $1, predicted_class = $2" {
		t.Errorf("Set() = %q", set)
	}
	if got := b.Clause(); got != " WHERE id = ANY($3)" {
		t.Errorf("Clause() = %q", got)
	}
	want := []any{true, "Healthy", []int64{7}}
	if !reflect.DeepEqual(b.Args(), want) {
		t.Errorf("Args() = %v, want %v", b.Args(), want)
	}
}

func TestBuilder_Arg(t *testing.T) {
	var b Builder
	b.Where("a", 1)
	if p := b.Arg(20); p != "$2" {
		t.Errorf("Arg() = %q, want $2", p)
	}
}

func TestColumns_Invalid(t *testing.T) {
	cols := NewColumns("predicted_class", "is_verified")

	bad := cols.Invalid(map[string]any{
		"predicted_class": "x",
		"zeta":            1,
		"image_path":      "y",
	})
	if !reflect.DeepEqual(bad, []string{"image_path", "zeta"}) {
		t.Errorf("Invalid() = %v", bad)
	}

	if bad := cols.Invalid(map[string]any{"is_verified": true}); bad != nil {
		t.Errorf("Invalid() = %v, want nil", bad)
	}
	if names := cols.Names(); !reflect.DeepEqual(names, []string{"is_verified", "predicted_class"}) {
		t.Errorf("Names() = %v", names)
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantLimit, wantOffs int
	}{
		{0, 0, 20, 0},
		{1, 10, 10, 0},
		{3, 10, 10, 20},
		{2, 500, 100, 100},
		{-1, -5, 20, 0},
	}
	for _, tt := range tests {
		l, o := Paginate(tt.page, tt.limit)
		if l != tt.wantLimit || o != tt.wantOffs {
			t.Errorf("Paginate(%d, %d) = (%d, %d), want (%d, %d)", tt.page, tt.limit, l, o, tt.wantLimit, tt.wantOffs)
		}
	}
}
