package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func filler(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestInspectFormatFullMarks(t *testing.T) {
	resume := "Summary Objective Experience Education Skills a.dev@mail.example.com +91 9876543210 " + filler(200)
	r := InspectFormat(resume)

	assert.Equal(t, []string{"experience", "education", "skills", "summary", "objective"}, r.SectionsFound)
	assert.True(t, r.HasEmail)
	assert.True(t, r.HasPhone)
	assert.Equal(t, 208, r.WordCount)
	assert.Equal(t, 90, r.Score)
}

func TestInspectFormatSignals(t *testing.T) {
	cases := []struct {
		name   string
		resume string
		score  int
	}{
		{"无任何信号", "hello world", 0},
		{"只有邮箱", "contact me at jane@corp.io", 10},
		{"只有电话", "call 9876543210", 10},
		{"九位号码不算电话", "call 987654321", 0},
		{"章节大小写不敏感", "EXPERIENCE and SKILLS", 20},
		{"篇幅合适", filler(1000), 20},
		{"篇幅过长", filler(1001), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.score, FormatScore(tc.resume))
		})
	}
}
