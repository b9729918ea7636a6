package mcpserver

import (
	"fmt"

	"github.com/starford/mnemo/internal/ingest"
)

// PolicyURI is the resource describing how notes are enriched.
const PolicyURI = "mnemo://ingest-policy"

// IngestPolicy describes the enrichment rules an LLM client should expect
// when it captures or ingests notes.
var IngestPolicy = fmt.Sprintf(`# Mnemo Ingestion Policy

Every captured note is enriched by the ingestion pipeline.

## Steps

1. **Summary**: at most about 40 words, written for quick recall.
2. **Tags**: 5-10 short tags (1-3 words each) proposed by the model.
   Whitespace is collapsed and matching is case-insensitive; the first
   spelling seen for an owner is kept. At most %d tags are attached.
3. **Embedding**: computed from the note text, or from the summary when
   the text is empty.
4. **Links**: up to %d neighbours are compared. Notes with similarity of at
   least %.2f become directed links from the new note, strongest first,
   at most %d per run. Links are never created in reverse automatically.

## Rules

- Only the owner of a note may ingest it.
- Ingesting the same note again refreshes its summary, tags and link
  strengths without creating duplicates.
- A tag reply that is not a JSON array of strings results in no tags; the
  run still succeeds.
`, ingest.MaxTags, ingest.DefaultCandidateLimit, ingest.LinkThreshold, ingest.MaxLinks)
