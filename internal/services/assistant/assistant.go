// Package assistant answers questions about the filtered transactions using a
// generative model. The model sees the question plus a plain-text snapshot.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"findash/internal/models"
	"findash/internal/services/snapshot"
)

// NotConnectedAnswer is returned when no model is configured
const NotConnectedAnswer = "Estoy analizando tus datos... Para darte una respuesta real necesito que conectemos una API de IA."

// DefaultModelName is used when no model is configured
const DefaultModelName = "gemini-2.5-flash"

// ErrEmptyQuestion is returned for blank questions
var ErrEmptyQuestion = errors.New("question is empty")

const systemInstruction = "Eres un asistente de finanzas personales. " +
	"Responde en el idioma de la pregunta usando solo los movimientos proporcionados. " +
	"Los gastos pueden tener importe negativo; habla de ellos en valor absoluto. " +
	"Si los datos no bastan para responder, dilo."

// Generator produces a model completion for a prompt
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Answer is the assistant's reply to one question
type Answer struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Connected bool   `json:"connected"`
	Rows      int    `json:"rows"`
}

// Assistant builds prompts from the working set and calls the generator
type Assistant struct {
	gen Generator
	log zerolog.Logger
}

// New creates an assistant. A nil generator yields NotConnectedAnswer.
func New(gen Generator, log zerolog.Logger) *Assistant {
	return &Assistant{
		gen: gen,
		log: log.With().Str("component", "assistant").Logger(),
	}
}

// Connected reports whether a model is configured
func (a *Assistant) Connected() bool {
	return a.gen != nil
}

// Ask answers question over the transactions in ts
func (a *Assistant) Ask(ctx context.Context, question string, ts *models.TransactionSet) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	answer := &Answer{Question: question, Rows: ts.Len()}
	if a.gen == nil {
		answer.Answer = NotConnectedAnswer
		return answer, nil
	}

	prompt := BuildPrompt(question, ts)
	a.log.Debug().Int("rows", ts.Len()).Int("prompt_bytes", len(prompt)).Msg("asking model")

	text, err := a.gen.Generate(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("generate answer: empty response from model")
	}

	answer.Answer = text
	answer.Connected = true
	return answer, nil
}

// BuildPrompt combines the question with the snapshot of ts
func BuildPrompt(question string, ts *models.TransactionSet) string {
	var b strings.Builder
	b.WriteString("Movimientos:\n")
	b.WriteString(snapshot.Text(ts))
	b.WriteString("\nPregunta: ")
	b.WriteString(question)
	b.WriteString("\n")
	return b.String()
}

// GeminiGenerator calls a Gemini model through the genai SDK
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGemini creates a generator for apiKey. An empty model uses DefaultModelName.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if model == "" {
		model = DefaultModelName
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate implements Generator
func (g *GeminiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.2),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", g.model, err)
	}
	return resp.Text(), nil
}
