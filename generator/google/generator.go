package google

import (
	"context"
	"errors"
	"strings"

	"github.com/eunoia-app/eunoia/generator"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	genaiopt "google.golang.org/api/option"
)

type googleGenerator struct {
	options generator.Options
	client  *genai.Client
}

func (g *googleGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.options.Model)
	rsp, err := model.GenerateContent(ctx, genai.Text(g.fullPrompt(prompt)))
	if err != nil {
		return "", err
	}

	if len(rsp.Candidates) == 0 || rsp.Candidates[0].Content == nil || len(rsp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Google")
	}

	var b strings.Builder
	for _, part := range rsp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	return b.String(), nil
}

func (g *googleGenerator) Stream(ctx context.Context, prompt string) (<-chan generator.Fragment, error) {
	model := g.client.GenerativeModel(g.options.Model)
	iter := model.GenerateContentStream(ctx, genai.Text(g.fullPrompt(prompt)))

	out := make(chan generator.Fragment)

	go func() {
		defer close(out)

		for {
			rsp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				generator.Emit(ctx, out, generator.Fragment{Err: err})
				return
			}

			if len(rsp.Candidates) == 0 || rsp.Candidates[0].Content == nil {
				continue
			}

			for _, part := range rsp.Candidates[0].Content.Parts {
				text, ok := part.(genai.Text)
				if !ok || len(text) == 0 {
					continue
				}
				if !generator.Emit(ctx, out, generator.Fragment{Content: string(text)}) {
					return
				}
			}
		}
	}()

	return out, nil
}

func (g *googleGenerator) fullPrompt(prompt string) string {
	if len(g.options.PromptPrefix) > 0 {
		return g.options.PromptPrefix + "\n" + prompt
	}
	return prompt
}

func NewGenerator(opts ...generator.Option) generator.Generator {
	options := generator.NewOptions(opts...)

	g := &googleGenerator{
		options: options,
	}

	client, err := genai.NewClient(
		context.Background(),
		genaiopt.WithAPIKey(options.ApiKey),
	)
	if err != nil {
		panic(err)
	}

	g.client = client

	return g
}
