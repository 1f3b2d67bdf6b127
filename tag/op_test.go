package tag

import "testing"

func TestOpType_IsMatch(t *testing.T) {
	tests := []struct {
		name   string
		op     OpType
		values []string
		target string
		want   bool
	}{
		{"equal hit", OpEqual, []string{"us"}, "us", true},
		{"equal miss", OpEqual, []string{"us"}, "eu", false},
		{"equal empty target", OpEqual, []string{""}, "", false},
		{"in hit", OpIn, []string{"a", "b", "c"}, "b", true},
		{"in miss", OpIn, []string{"a", "b"}, "z", false},
		{"in no values", OpIn, nil, "a", false},
		{"not equal hit", OpNotEqual, []string{"us"}, "eu", true},
		{"not equal miss", OpNotEqual, []string{"us"}, "us", false},
		{"not equal empty target", OpNotEqual, []string{"us"}, "", false},
		{"not in hit", OpNotIn, []string{"a", "b"}, "c", true},
		{"not in miss", OpNotIn, []string{"a", "b"}, "a", false},
		{"prefix hit", OpPrefix, []string{"beta-", "gray-"}, "gray-01", true},
		{"prefix miss", OpPrefix, []string{"beta-"}, "prod-01", false},
		{"prefix empty value ignored", OpPrefix, []string{""}, "prod", false},
		{"regular hit", OpRegular, []string{`user-\d+`}, "user-42", true},
		{"regular anchored", OpRegular, []string{`user-\d+`}, "xuser-42", false},
		{"regular invalid", OpRegular, []string{`(`}, "(", false},
		{"regular second value", OpRegular, []string{`(`, `a.c`}, "abc", true},
		{"regular group escape", OpRegular, []string{`a)|(?:.*`}, "zzz", false},
		{"regular group escape exact", OpRegular, []string{`a)|(?:.*`}, "a", false},
		{"unknown op", OpType("GREATER"), []string{"1"}, "2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.IsMatch(tt.values, tt.target); got != tt.want {
				t.Errorf("%s.IsMatch(%v, %q) = %v, want %v", tt.op, tt.values, tt.target, got, tt.want)
			}
		})
	}
}

func TestOpType_Valid(t *testing.T) {
	for _, op := range []OpType{OpEqual, OpNotEqual, OpIn, OpNotIn, OpPrefix, OpRegular} {
		if !op.Valid() {
			t.Errorf("%s should be valid", op)
		}
	}
	if OpType("").Valid() || OpType("equal").Valid() {
		t.Error("unknown operators should be invalid")
	}
}
