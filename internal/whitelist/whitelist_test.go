package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIsAllowed(t *testing.T) {
	c := NewChecker([]string{" Serverless.Roboflow.com ", "huggingface.co", ""}, zap.NewNop())

	tests := []struct {
		url  string
		want bool
	}{
		{"https://serverless.roboflow.com/nutriguard/yolov8", true},
		{"https://api-inference.huggingface.co/models/google/vit-base-patch16-224", true},
		{"http://huggingface.co/x", true},
		{"https://evilhuggingface.co/x", false},
		{"https://roboflow.com/x", false},
		{"ftp://serverless.roboflow.com/x", false},
		{"serverless.roboflow.com/x", false},
		{"://bad", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.IsAllowed(tt.url), tt.url)
	}
	assert.Equal(t, []string{"serverless.roboflow.com", "huggingface.co"}, c.Hosts())
}

func TestEmptyListAllowsNothing(t *testing.T) {
	c := NewChecker(nil, nil)
	assert.False(t, c.IsAllowed("https://serverless.roboflow.com/a/b"))
}
