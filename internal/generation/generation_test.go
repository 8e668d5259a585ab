package generation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRuntime struct {
	lastInput *bedrockruntime.InvokeModelInput
	body      string
	err       error
}

func (f *fakeRuntime) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func (f *fakeRuntime) InvokeModelWithResponseStream(context.Context, *bedrockruntime.InvokeModelWithResponseStreamInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error) {
	return nil, errors.New("not used")
}

type fakeStream struct {
	events chan types.ResponseStream
	err    error
	closed bool
}

func newFakeStream(payloads ...string) *fakeStream {
	s := &fakeStream{events: make(chan types.ResponseStream, len(payloads))}
	for _, p := range payloads {
		s.events <- &types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte(p)}}
	}
	close(s.events)
	return s
}

func (s *fakeStream) Events() <-chan types.ResponseStream { return s.events }
func (s *fakeStream) Close() error                        { s.closed = true; return nil }
func (s *fakeStream) Err() error                          { return s.err }

func delta(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"type":  "content_block_delta",
		"index": 0,
		"delta": map[string]string{"type": "text_delta", "text": text},
	})
	return string(b)
}

func collect(t *testing.T, ch <-chan Chunk) ([]string, error) {
	t.Helper()
	var texts []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return texts, nil
			}
			if c.Err != nil {
				return texts, c.Err
			}
			texts = append(texts, c.Text)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func TestBedrockGenerate(t *testing.T) {
	rt := &fakeRuntime{body: `{"content":[{"type":"text","text":"| a | b |"}]}`}
	b := NewBedrockBackend(rt, BedrockSettings{}, zap.NewNop())

	out, err := b.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "| a | b |", out)
	assert.Equal(t, "claude-3-haiku", b.ModelName())

	assert.Equal(t, DefaultModelID, aws.ToString(rt.lastInput.ModelId))
	var req map[string]interface{}
	require.NoError(t, json.Unmarshal(rt.lastInput.Body, &req))
	assert.Equal(t, "bedrock-2023-05-31", req["anthropic_version"])
	assert.EqualValues(t, 4000, req["max_tokens"])
	assert.EqualValues(t, 0.1, req["temperature"])
	assert.EqualValues(t, 0.9, req["top_p"])
	messages := req["messages"].([]interface{})
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "prompt", messages[0].(map[string]interface{})["content"])

	t.Run("EmptyContent", func(t *testing.T) {
		rt.body = `{"content":[]}`
		_, err := b.Generate(context.Background(), "prompt")
		assert.True(t, appErrors.IsGeneration(err))
	})

	t.Run("APIError", func(t *testing.T) {
		rt.err = &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate exceeded"}
		_, err := b.Generate(context.Background(), "prompt")
		require.True(t, appErrors.IsGeneration(err))
		assert.Equal(t, "ThrottlingException", appErrors.GetAppError(err).Code)
	})
}

func TestBedrockGenerateStream(t *testing.T) {
	b := NewBedrockBackend(&fakeRuntime{}, BedrockSettings{}, zap.NewNop())

	t.Run("ForwardsDeltasInOrder", func(t *testing.T) {
		stream := newFakeStream(
			`{"type":"message_start","message":{}}`,
			delta("# 제목"),
			`{"type":"content_block_start","index":0}`,
			delta("\n본문"),
			`{"type":"message_stop"}`,
		)
		b.openStream = func(context.Context, *bedrockruntime.InvokeModelWithResponseStreamInput) (eventStream, error) {
			return stream, nil
		}

		ch, err := b.GenerateStream(context.Background(), "prompt")
		require.NoError(t, err)
		texts, err := collect(t, ch)
		require.NoError(t, err)
		assert.Equal(t, []string{"# 제목", "\n본문"}, texts)
		assert.True(t, stream.closed)
	})

	t.Run("EmptyStream", func(t *testing.T) {
		b.openStream = func(context.Context, *bedrockruntime.InvokeModelWithResponseStreamInput) (eventStream, error) {
			return newFakeStream(), nil
		}
		ch, err := b.GenerateStream(context.Background(), "prompt")
		require.NoError(t, err)
		texts, err := collect(t, ch)
		require.NoError(t, err)
		assert.Empty(t, texts)
	})

	t.Run("StreamErrorIsLastChunk", func(t *testing.T) {
		stream := newFakeStream(delta("partial"))
		stream.err = errors.New("connection reset")
		b.openStream = func(context.Context, *bedrockruntime.InvokeModelWithResponseStreamInput) (eventStream, error) {
			return stream, nil
		}
		ch, err := b.GenerateStream(context.Background(), "prompt")
		require.NoError(t, err)
		texts, err := collect(t, ch)
		assert.Equal(t, []string{"partial"}, texts)
		assert.True(t, appErrors.IsGeneration(err))
	})

	t.Run("OpenFails", func(t *testing.T) {
		b.openStream = func(context.Context, *bedrockruntime.InvokeModelWithResponseStreamInput) (eventStream, error) {
			return nil, &smithy.GenericAPIError{Code: "AccessDeniedException"}
		}
		_, err := b.GenerateStream(context.Background(), "prompt")
		assert.True(t, appErrors.IsGeneration(err))
	})

	t.Run("CancelStopsConsuming", func(t *testing.T) {
		events := make(chan types.ResponseStream)
		stream := &fakeStream{events: events}
		b.openStream = func(context.Context, *bedrockruntime.InvokeModelWithResponseStreamInput) (eventStream, error) {
			return stream, nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		ch, err := b.GenerateStream(ctx, "prompt")
		require.NoError(t, err)
		cancel()
		_, err = collect(t, ch)
		assert.NoError(t, err)
	})
}

func TestTableFallback(t *testing.T) {
	f := NewTableFallback(true)

	t.Run("SyncInsertsTableAtTrigger", func(t *testing.T) {
		out, changed := f.ApplySync("국내외 목표 - 판매", "정리: 국내외 목표 - 판매")
		assert.True(t, changed)
		assert.Equal(t, "정리: \n\n| 구분 | 내용 |\n|------|------|\n| 국내외 목표 - 판매", out)
	})

	t.Run("SyncLeavesTablesAlone", func(t *testing.T) {
		out, changed := f.ApplySync("국내외 목표", "| 국내외 목표 | x |")
		assert.False(t, changed)
		assert.Equal(t, "| 국내외 목표 | x |", out)
	})

	t.Run("SyncNeedsTriggerInSource", func(t *testing.T) {
		_, changed := f.ApplySync("시장 전략", "국내외 목표")
		assert.False(t, changed)
	})

	t.Run("StreamTail", func(t *testing.T) {
		tail := f.StreamTail("올해 목표", "요약만 있음")
		require.Len(t, tail, 5)
		assert.Equal(t, "\n\n## 주요 정보 정리\n\n", tail[0])
		assert.Equal(t, "| 전략 | 텍스트에서 추출된 전략 내용 |\n", tail[4])

		assert.Nil(t, f.StreamTail("올해 목표", "| 표 |"))
		assert.Nil(t, f.StreamTail("계획", "요약"))
	})

	t.Run("Disabled", func(t *testing.T) {
		off := NewTableFallback(false)
		_, changed := off.ApplySync("국내외 목표", "국내외 목표")
		assert.False(t, changed)
		assert.Nil(t, off.StreamTail("목표", ""))

		var none *TableFallback
		assert.False(t, none.Enabled())
	})
}

func TestPrompts(t *testing.T) {
	p := CorrectionPrompt("원본 텍스트")
	assert.True(t, strings.HasPrefix(p, "다음은 OCR로 추출된 텍스트입니다."))
	assert.Contains(t, p, "OCR 텍스트:\n원본 텍스트\n")
	assert.Contains(t, p, "```")
	assert.NotContains(t, p, sourcePlaceholder)

	s := StudyNotePrompt("노트")
	assert.True(t, strings.HasPrefix(s, "당신은 학습 노트를 자동으로 생성하는 AI 어시스턴트입니다."))
	assert.True(t, strings.HasSuffix(s, "📝 **자동 생성된 학습 노트:**\n"))
	assert.Contains(t, s, "OCR 원본 텍스트:\n노트\n")
}

type flakyBackend struct {
	err   error
	calls int
}

func (f *flakyBackend) Generate(context.Context, string) (string, error) {
	f.calls++
	return "", f.err
}

func (f *flakyBackend) GenerateStream(context.Context, string) (<-chan Chunk, error) {
	f.calls++
	return nil, f.err
}

func (f *flakyBackend) ModelName() string { return "fake" }

func TestBreakerBackendOpens(t *testing.T) {
	inner := &flakyBackend{err: appErrors.NewGeneration("boom", nil)}
	cfg := DefaultBreakerConfig()
	cfg.MinRequests = 2
	cfg.FailureThreshold = 0.5
	b := NewBreakerBackend(inner, cfg, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := b.Generate(context.Background(), "p")
		require.Error(t, err)
	}
	assert.Equal(t, 2, inner.calls)

	_, err := b.GenerateStream(context.Background(), "p")
	require.True(t, appErrors.IsGeneration(err))
	assert.Equal(t, "CIRCUIT_OPEN", appErrors.GetAppError(err).Code)
	assert.Equal(t, 2, inner.calls)
}

func TestBedrockChat(t *testing.T) {
	rt := &fakeRuntime{body: `{"content":[{"type":"text","text":"좋은 질문이에요."}],"usage":{"input_tokens":30,"output_tokens":12}}`}
	b := NewBedrockBackend(rt, BedrockSettings{}, zap.NewNop())

	reply, err := b.Chat(context.Background(), ChatRequest{
		System: TutorSystemPrompt,
		Messages: []Message{
			{Role: "user", Content: "미분이 뭐예요?"},
			{Role: "assistant", Content: "변화율입니다."},
			{Role: "user", Content: "예시를 들어주세요"},
		},
		MaxTokens:   1000,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "좋은 질문이에요.", reply.Text)
	assert.Equal(t, 42, reply.TotalTokens())

	var req map[string]interface{}
	require.NoError(t, json.Unmarshal(rt.lastInput.Body, &req))
	assert.Equal(t, TutorSystemPrompt, req["system"])
	assert.EqualValues(t, 1000, req["max_tokens"])
	assert.EqualValues(t, 0.7, req["temperature"])
	messages := req["messages"].([]interface{})
	require.Len(t, messages, 3)
	assert.Equal(t, "assistant", messages[1].(map[string]interface{})["role"])

	t.Run("GenerateOmitsSystem", func(t *testing.T) {
		_, err := b.Generate(context.Background(), "prompt")
		require.NoError(t, err)
		var req map[string]interface{}
		require.NoError(t, json.Unmarshal(rt.lastInput.Body, &req))
		_, present := req["system"]
		assert.False(t, present)
	})
}

func TestBreakerBackendChat(t *testing.T) {
	t.Run("DelegatesToChatter", func(t *testing.T) {
		rt := &fakeRuntime{body: `{"content":[{"type":"text","text":"hi"}],"usage":{"input_tokens":1,"output_tokens":1}}`}
		b := NewBreakerBackend(NewBedrockBackend(rt, BedrockSettings{}, zap.NewNop()), DefaultBreakerConfig(), zap.NewNop())
		reply, err := b.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hello"}}})
		require.NoError(t, err)
		assert.Equal(t, "hi", reply.Text)
	})

	t.Run("InnerWithoutChat", func(t *testing.T) {
		b := NewBreakerBackend(&flakyBackend{}, DefaultBreakerConfig(), zap.NewNop())
		_, err := b.Chat(context.Background(), ChatRequest{})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrorTypeInternal, appErrors.GetAppError(err).Type)
	})
}
