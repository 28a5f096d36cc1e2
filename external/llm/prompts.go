package llm

import (
	"fmt"
	"strings"
)

const consolidationSystemPrompt = `你是一个专业的文本整合助手。你的任务是将语音识别系统返回的多个逐步增长的文本片段整合成一段完整、流畅的文字。

这些片段是实时语音识别系统逐步识别出的结果，特点：
- 后面的片段通常包含前面片段的内容，但会更完整
- 片段之间可能有重复，需要去重
- 片段可能不完整，需要合并成完整句子
- 需要保持原文的意思、语气和逻辑顺序

整合要求：
1. 识别并去除重复内容（包括部分重复）
2. 保留最完整、最准确的信息
3. 按照时间顺序整合所有片段
4. 整合成一段流畅、连贯的文字，保持原文的意思和语气
5. 不要添加原文中没有的内容
6. 保持标点符号的正确使用

只返回整合后的完整文字，不要添加任何解释、说明或标记。`

func consolidationUserPrompt(texts []string) string {
	var b strings.Builder
	b.WriteString("以下是语音识别系统返回的多个文本片段（按识别顺序排列），请整合成一段完整、流畅的文字：\n\n")
	for i, text := range texts {
		fmt.Fprintf(&b, "片段%d: %s\n", i+1, text)
	}
	b.WriteString(`
请仔细分析所有片段，去除重复内容，保留最完整的信息，整合成一段完整、流畅的文字。注意：
- 后面的片段通常包含前面片段的内容，选择最完整的版本
- 保持原文的逻辑顺序和意思
- 确保整合后的文字完整、连贯、流畅

整合后的完整文字：`)
	return b.String()
}

const evaluationSystemPrompt = "You are an experienced interview coach. " +
	"Return strict JSON with keys overallScore (0-100), summary (string), " +
	"strengths (array of strings), improvements (array of strings). " +
	"Focus on relevance, structure, and communication."
