package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/weft/internal/ir"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		val  ir.Value
		want Status
	}{
		{ir.Int(3), StatusSuccess},
		{ir.Void{}, StatusSuccess},
		{ir.Failure{Tag: "bad"}, StatusUncaughtFailure},
		{ir.Failure{Tag: ir.TagModuleNotFound}, StatusUncaughtFailure},
		{ir.Failure{Tag: ir.TagNoMain}, StatusUncaughtFailure},
	}
	for _, tt := range tests {
		t.Run(tt.val.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.val))
		})
	}
	assert.Equal(t, "no_main", StatusNoMain.String())
}

func TestResultStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, Result{Value: ir.Int(1)}.Status())
	assert.Equal(t, StatusNoMain, Result{Value: ir.Failure{Tag: ir.TagNoMain}, NoMain: true}.Status())
	assert.Equal(t, StatusUncaughtFailure, Result{Value: ir.Failure{Tag: ir.TagNoMain}}.Status(),
		"a program returning a no_main failure still ran")
}
