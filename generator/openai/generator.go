package openai

import (
	"context"
	"errors"
	"io"

	"github.com/eunoia-app/eunoia/generator"
	"github.com/sashabaranov/go-openai"
)

type openAIGenerator struct {
	options generator.Options
	client  *openai.Client
}

func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.options.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: g.fullPrompt(prompt),
			},
		},
	}

	rsp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(rsp.Choices) == 0 || len(rsp.Choices[0].Message.Content) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	return rsp.Choices[0].Message.Content, nil
}

func (g *openAIGenerator) Stream(ctx context.Context, prompt string) (<-chan generator.Fragment, error) {
	req := openai.ChatCompletionRequest{
		Model: g.options.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: g.fullPrompt(prompt),
			},
		},
		Stream: true,
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan generator.Fragment)

	go func() {
		defer close(out)
		defer stream.Close()

		for {
			rsp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				generator.Emit(ctx, out, generator.Fragment{Err: err})
				return
			}

			if len(rsp.Choices) == 0 {
				continue
			}

			content := rsp.Choices[0].Delta.Content
			if len(content) == 0 {
				continue
			}

			if !generator.Emit(ctx, out, generator.Fragment{Content: content}) {
				return
			}
		}
	}()

	return out, nil
}

func (g *openAIGenerator) fullPrompt(prompt string) string {
	if len(g.options.PromptPrefix) > 0 {
		return g.options.PromptPrefix + "\n" + prompt
	}
	return prompt
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	g := &openAIGenerator{
		options: options,
	}

	config := openai.DefaultConfig(options.ApiKey)
	if len(options.BaseUrl) > 0 {
		config.BaseURL = options.BaseUrl
	}

	g.client = openai.NewClientWithConfig(config)

	return g
}
