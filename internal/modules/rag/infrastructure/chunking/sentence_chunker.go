package chunking

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"DocLink/pkg/xerr"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

var sentenceSplitter = regexp.MustCompile(`[.!?]+`)

// SentenceChunker 按句子边界将文本切分为大小受限的片段。
// 默认的 sentence 模式以 . ! ? 作为句子终结符，按词数贪心打包；
// useRecursive 模式复用递归切分器，会真正应用 overlap。
type SentenceChunker struct {
	MaxTokens    int
	Overlap      int
	useRecursive bool

	initOnce      sync.Once
	initErr       error
	recursiveImpl document.Transformer
}

// NewSentenceChunker 创建切片器。maxTokens 必须为正，overlap 不能为负。
func NewSentenceChunker(maxTokens, overlap int) (*SentenceChunker, error) {
	if maxTokens <= 0 || overlap < 0 {
		return nil, xerr.ErrInvalidParameters
	}
	return &SentenceChunker{MaxTokens: maxTokens, Overlap: overlap}, nil
}

// NewRecursiveChunker 创建使用递归切分器的切片器
func NewRecursiveChunker(maxTokens, overlap int) (*SentenceChunker, error) {
	c, err := NewSentenceChunker(maxTokens, overlap)
	if err != nil {
		return nil, err
	}
	if overlap >= maxTokens {
		return nil, xerr.ErrInvalidParameters
	}
	c.useRecursive = true
	return c, nil
}

// Chunk 切分文本。保证非空输入至少返回一个非空片段。
func (c *SentenceChunker) Chunk(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, xerr.ErrEmptyInput
	}

	if c.useRecursive {
		return c.chunkRecursive(ctx, text)
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		// 没有句子边界时整段文本作为一个片段
		return []string{text}, nil
	}

	var chunks []string
	var current []string
	currentLen := 0

	for _, sentence := range sentences {
		n := len(strings.Fields(sentence))
		if currentLen+n <= c.MaxTokens {
			current = append(current, sentence)
			currentLen += n
			continue
		}
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
		}
		// 超长句子独占一个片段，不做硬切词
		current = []string{sentence}
		currentLen = n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	if len(chunks) == 0 {
		chunks = []string{text}
	}
	return chunks, nil
}

func (c *SentenceChunker) chunkRecursive(ctx context.Context, text string) ([]string, error) {
	c.initOnce.Do(func() {
		impl, err := recursive.NewSplitter(ctx, &recursive.Config{
			ChunkSize:   c.MaxTokens,
			OverlapSize: c.Overlap,
			Separators:  []string{"\n\n", "\n", ".", "!", "?", " "},
			LenFunc: func(s string) int {
				return len([]rune(s))
			},
			KeepType: recursive.KeepTypeEnd,
		})
		if err != nil {
			c.initErr = err
			return
		}
		c.recursiveImpl = impl
	})
	if c.initErr != nil {
		return nil, c.initErr
	}
	if c.recursiveImpl == nil {
		return nil, fmt.Errorf("recursive splitter not initialized")
	}

	frags, err := c.recursiveImpl.Transform(ctx, []*schema.Document{{Content: text}})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(frags))
	for _, f := range frags {
		if f == nil || strings.TrimSpace(f.Content) == "" {
			continue
		}
		out = append(out, f.Content)
	}
	if len(out) == 0 {
		out = []string{text}
	}
	return out, nil
}

// splitSentences 以终结标点切句，丢弃空白片段
func splitSentences(text string) []string {
	parts := sentenceSplitter.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}
