package conversations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func conv(title string, contents ...string) *Conversation {
	c := &Conversation{Title: title}
	for _, text := range contents {
		c.Messages = append(c.Messages, Message{Role: RoleUser, Content: text})
	}
	return c
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		conv *Conversation
		want string
	}{
		{
			name: "debugging",
			conv: conv("help", "I hit a panic with this stack trace, the build is broken"),
			want: TypeDebugging,
		},
		{
			name: "architecture",
			conv: conv("system design", "should this component be its own microservice?"),
			want: TypeArchitecture,
		},
		{
			name: "problem solving",
			conv: conv("", "how do I optimize this algorithm?"),
			want: TypeProblemSolving,
		},
		{
			name: "code discussion",
			conv: conv("", "can you refactor this function and rename the variable?"),
			want: TypeCodeDiscussion,
		},
		{
			name: "technical",
			conv: conv("", "the docker install needs a newer dependency version"),
			want: TypeTechnical,
		},
		{
			name: "no keywords",
			conv: conv("chat", "hello there"),
			want: TypeGeneral,
		},
		{
			name: "empty conversation",
			conv: &Conversation{},
			want: TypeGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.conv))
		})
	}
}

func TestClassifyTieKeepsPriorityOrder(t *testing.T) {
	// One architecture hit and one debugging hit: architecture is
	// earlier in the priority order and must win the tie.
	c := conv("", "the architecture has a bug")
	assert.Equal(t, TypeArchitecture, Classify(c))
}

func TestValidType(t *testing.T) {
	for _, label := range TypePriority {
		assert.True(t, ValidType(label))
	}
	assert.False(t, ValidType("rant"))
}
