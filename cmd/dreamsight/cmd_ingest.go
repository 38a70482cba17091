package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhatai1995/DreamSight-AI/internal/knowledge"
)

var (
	ingestFile  string
	ingestForce bool
)

// ingestCmd populates the vector knowledge base
var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Populate the dream knowledge base",
	Long: `Embeds documents and loads them into the vector knowledge base.

With a directory argument every .txt and .md file in it becomes one
document; the filename prefix selects the source type (psychology_,
mystical_, anything else is symbol_dictionary) and the rest becomes the
title. With --file a JSON array of documents is ingested:

  [{"title": "...", "content": "...", "source_type": "symbol_dictionary"}]

Without either, the embedded starter corpus is used: a compact dream
dictionary plus Jungian and mystical reference texts.

Valid source types: symbol_dictionary, psychology_text, mystical_text.
Requires GEMINI_API_KEY for embedding generation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "JSON document file (default: embedded starter corpus)")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "ingest even when the store already has documents")
}

const ingestBatchSize = 50

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Documents are embedded with the document task type; queries use
	// RETRIEVAL_QUERY at serve time.
	engine, err := knowledge.NewGenAIEngine(cfg.Embedding.APIKey, cfg.Embedding.Model, knowledge.TaskDocument)
	if err != nil {
		return fmt.Errorf("failed to create embedding engine: %w", err)
	}
	defer engine.Close()

	store, err := knowledge.NewStore(cfg.Knowledge.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open knowledge store: %w", err)
	}
	defer store.Close()

	existing, err := store.Count(ctx, "")
	if err != nil {
		return err
	}
	if existing > 0 && !ingestForce {
		fmt.Printf("Knowledge base already contains %d documents. Use --force to ingest anyway.\n", existing)
		return nil
	}

	docs := seedDocuments
	switch {
	case len(args) == 1:
		if docs, err = loadDocumentDir(args[0]); err != nil {
			return err
		}
	case ingestFile != "":
		if docs, err = loadDocuments(ingestFile); err != nil {
			return err
		}
	}
	fmt.Printf("Ingesting %d documents into %s (engine: %s)\n",
		len(docs), cfg.Knowledge.DatabasePath, engine.Name())

	total := 0
	for start := 0; start < len(docs); start += ingestBatchSize {
		end := min(start+ingestBatchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Content
		}
		embeddings, err := engine.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}
		if err := store.AddBatch(ctx, batch, embeddings); err != nil {
			return fmt.Errorf("failed to store batch at %d: %w", start, err)
		}
		total += len(batch)
		fmt.Printf("  %d/%d\n", total, len(docs))
	}

	fmt.Printf("Done. Knowledge base now holds %d documents.\n", existing+total)
	return nil
}

func loadDocuments(path string) ([]knowledge.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}
	var raw []struct {
		Title      string `json:"title"`
		Content    string `json:"content"`
		SourceType string `json:"source_type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse document file: %w", err)
	}

	docs := make([]knowledge.Document, 0, len(raw))
	for i, doc := range raw {
		if doc.Content == "" || doc.SourceType == "" {
			return nil, fmt.Errorf("document %d is missing content or source_type", i)
		}
		docs = append(docs, knowledge.Document{
			Title:      doc.Title,
			Content:    doc.Content,
			SourceType: doc.SourceType,
		})
	}
	return docs, nil
}

// loadDocumentDir turns every .txt and .md file in dir into one document.
// The filename prefix picks the lens: psychology_*, mystical_*, and
// everything else lands in the symbol dictionary.
func loadDocumentDir(dir string) ([]knowledge.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read document directory: %w", err)
	}

	var docs []knowledge.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".txt" && ext != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ext)
		sourceType := "symbol_dictionary"
		switch {
		case strings.HasPrefix(name, "psychology_"):
			sourceType = "psychology_text"
			name = strings.TrimPrefix(name, "psychology_")
		case strings.HasPrefix(name, "mystical_"):
			sourceType = "mystical_text"
			name = strings.TrimPrefix(name, "mystical_")
		}

		docs = append(docs, knowledge.Document{
			Title:      strings.ReplaceAll(name, "_", " "),
			Content:    content,
			SourceType: sourceType,
		})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no .txt or .md documents found in %s", dir)
	}
	return docs, nil
}

// seedDocuments is the starter corpus: enough coverage for every lens of the
// analysis to retrieve something meaningful on a fresh install.
var seedDocuments = []knowledge.Document{
	{
		Title:      "Flying Dreams",
		Content:    "Flying in dreams often represents a sense of freedom, liberation, or a desire to escape from restrictions in waking life. Lucid flying suggests control over one's destiny. Difficulty staying aloft may indicate a lack of confidence.",
		SourceType: "symbol_dictionary",
	},
	{
		Title:      "Falling Dreams",
		Content:    "Falling is one of the most common dream themes. It usually signifies anxiety, loss of control, or a fear of failure. Freudian analysis suggests it may relate to giving in to temptation. Jungian analysis views it as a reminder to stay grounded.",
		SourceType: "symbol_dictionary",
	},
	{
		Title:      "Teeth Falling Out",
		Content:    "Dreams about teeth falling out are often linked to anxiety about appearance, communication, or powerlessness. It can symbolize a fear of aging, loss of vitality, or saying something you regret.",
		SourceType: "symbol_dictionary",
	},
	{
		Title:      "Being Chased",
		Content:    "Being chased suggests you are running away from a problem, fear, or aspect of yourself in waking life. The pursuer often represents a suppressed emotion or a responsibility you are avoiding.",
		SourceType: "symbol_dictionary",
	},
	{
		Title:      "Water Symbolism",
		Content:    "Water represents the emotional state and the subconscious. Calm water indicates peace and emotional balance. Turbulent or muddy water suggests emotional turmoil or confusion. Drowning implies being overwhelmed by feelings.",
		SourceType: "symbol_dictionary",
	},
	{
		Title:      "House as Self",
		Content:    "In dreams, a house often represents the self or the psyche. Different rooms relate to different aspects of life. An attic may symbolize intellect or hidden memories, while a basement represents the subconscious or primal instincts.",
		SourceType: "symbol_dictionary",
	},
	{
		Title:      "Snakes",
		Content:    "Snakes are complex symbols representing transformation, healing, fear, or hidden threats. Shedding skin implies rebirth. A biting snake may represent a toxic person or situation, or a wake-up call from the unconscious.",
		SourceType: "symbol_dictionary",
	},
	{
		Title:      "Naked in Public",
		Content:    "Dreaming of being naked in public symbolizes vulnerability, shame, or a fear of being exposed. It can also represent a desire for honesty and being one's true self without social masks.",
		SourceType: "symbol_dictionary",
	},
	{
		Title:      "Death and Dying",
		Content:    "Death in dreams rarely predicts actual death. Instead, it symbolizes the end of a phase, a significant change, or the need to let go of old habits. It is a symbol of transformation and new beginnings.",
		SourceType: "symbol_dictionary",
	},
	{
		Title:      "Exams and Tests",
		Content:    "Taking an exam in a dream, especially one you are unprepared for, highlights self-criticism and fear of failure. It often occurs when you feel scrutinized or judged in waking life.",
		SourceType: "symbol_dictionary",
	},
	{
		Title:      "The Shadow (Jungian)",
		Content:    "The Shadow represents the darker, unconscious aspects of the personality that the conscious ego does not identify with. Encountering a shadow figure forces the dreamer to confront their own repressed traits.",
		SourceType: "psychology_text",
	},
	{
		Title:      "Anima and Animus",
		Content:    "The Anima is the feminine inner personality in men, and the Animus is the masculine inner personality in women. They appear in dreams as figures guiding the dreamer toward psychological balance and wholeness.",
		SourceType: "psychology_text",
	},
	{
		Title:      "Lucid Dreaming",
		Content:    "Lucid dreaming is the state of being aware that you are dreaming while in the dream. In mystical traditions, this is seen as a gateway to higher consciousness and astral travel.",
		SourceType: "mystical_text",
	},
	{
		Title:      "Prophetic Dreams",
		Content:    "Some traditions believe dreams can forecast future events. These are often distinguished by their vividness and strong emotional resonance, differing from the chaotic nature of ordinary processing dreams.",
		SourceType: "mystical_text",
	},
}
