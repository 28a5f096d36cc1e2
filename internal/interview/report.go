package interview

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/leep66666/smart-job-assistant-backend/internal/evaluate"
)

// ReportItem is one question's entry in the aggregated report. An
// unanswered question keeps nil fields.
type ReportItem struct {
	QuestionID      string           `json:"questionId"`
	Question        string           `json:"question"`
	DurationSeconds *float64         `json:"durationSeconds"`
	Transcript      *string          `json:"transcript"`
	Evaluation      *evaluate.Result `json:"evaluation"`
}

type ReportSummary struct {
	SessionID     string   `json:"sessionId"`
	QuestionCount int      `json:"questionCount"`
	AnsweredCount int      `json:"answeredCount"`
	AverageScore  *float64 `json:"averageScore"`
	GeneratedAt   string   `json:"generatedAt"`
}

type Report struct {
	Summary  ReportSummary `json:"summary"`
	Items    []ReportItem  `json:"items"`
	Markdown string        `json:"markdown"`
}

// BuildReport aggregates everything answered so far. The average covers
// only questions that actually received a score.
func BuildReport(s Session, now time.Time) Report {
	items := make([]ReportItem, 0, len(s.Questions))
	var totalScore float64
	scored := 0
	answered := 0

	for _, question := range s.Questions {
		item := ReportItem{QuestionID: question.ID, Question: question.Text}
		if answer, ok := s.Answers[question.ID]; ok {
			answered++
			duration := answer.DurationSeconds
			transcript := answer.Transcript
			item.DurationSeconds = &duration
			item.Transcript = &transcript
			item.Evaluation = answer.Evaluation
			if answer.Evaluation != nil {
				totalScore += answer.Evaluation.OverallScore
				scored++
			}
		}
		items = append(items, item)
	}

	var averageScore *float64
	if scored > 0 {
		avg := math.Round(totalScore/float64(scored)*10) / 10
		averageScore = &avg
	}

	return Report{
		Summary: ReportSummary{
			SessionID:     s.ID,
			QuestionCount: len(s.Questions),
			AnsweredCount: answered,
			AverageScore:  averageScore,
			GeneratedAt:   now.Format("2006-01-02 15:04:05"),
		},
		Items:    items,
		Markdown: buildMarkdown(s, averageScore, now),
	}
}

func buildMarkdown(s Session, averageScore *float64, now time.Time) string {
	var b strings.Builder
	b.WriteString("# 面试评估报告\n")
	fmt.Fprintf(&b, "- Session ID: %s\n", s.ID)
	fmt.Fprintf(&b, "- 题目数量: %d\n", len(s.Questions))
	fmt.Fprintf(&b, "- 完成时间: %s\n", now.Format("2006-01-02 15:04:05"))
	if averageScore != nil {
		fmt.Fprintf(&b, "- 平均得分：%.1f\n", *averageScore)
	} else {
		b.WriteString("- 平均得分：N/A\n")
	}
	b.WriteString("\n")

	for _, question := range s.Questions {
		fmt.Fprintf(&b, "## 问题：%s\n", question.Text)
		answer, ok := s.Answers[question.ID]
		if !ok {
			b.WriteString("- （该题未作答）\n\n")
			continue
		}
		fmt.Fprintf(&b, "- 回答时长：%.1f 秒\n", answer.DurationSeconds)
		transcript := answer.Transcript
		if transcript == "" {
			transcript = "（无内容）"
		}
		fmt.Fprintf(&b, "- 语音转写：\n\n%s\n\n", transcript)
		if answer.Evaluation != nil {
			fmt.Fprintf(&b, "- 评分：%.0f\n", answer.Evaluation.OverallScore)
			if answer.Evaluation.Summary != "" {
				fmt.Fprintf(&b, "- 评估摘要：%s\n", answer.Evaluation.Summary)
			}
			if len(answer.Evaluation.Strengths) > 0 {
				b.WriteString("- 优势：\n")
				for _, item := range answer.Evaluation.Strengths {
					fmt.Fprintf(&b, "  - %s\n", item)
				}
			}
			if len(answer.Evaluation.Improvements) > 0 {
				b.WriteString("- 改进建议：\n")
				for _, item := range answer.Evaluation.Improvements {
					fmt.Fprintf(&b, "  - %s\n", item)
				}
			}
		} else {
			b.WriteString("- 评分：N/A\n")
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
