package repository

import "testing"

func TestOffset(t *testing.T) {
	cases := []struct {
		page int
		want int
	}{
		{-3, 0},
		{0, 0},
		{1, 0},
		{2, 10},
		{7, 60},
	}
	for _, tt := range cases {
		if got := Offset(tt.page); got != tt.want {
			t.Errorf("Offset(%d)=%d, want %d", tt.page, got, tt.want)
		}
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total int
		want  int
	}{
		{0, 0},
		{-5, 0},
		{1, 1},
		{9, 1},
		{10, 1},
		{11, 2},
		{100, 10},
		{101, 11},
	}
	for _, tt := range cases {
		if got := TotalPages(tt.total); got != tt.want {
			t.Errorf("TotalPages(%d)=%d, want %d", tt.total, got, tt.want)
		}
	}
}
