package mcpserver

import (
	"strings"

	"github.com/starford/kbclaude/internal/models"
)

// DocumentFormatContract describes the canonical document format that
// LLM consumers should follow when creating or editing documents.
var DocumentFormatContract = `# Knowledge Base Document Format

Every document is a Markdown file stored under ` + "`.claude/<type>/<link>.md`" + `.

## Structure

` + "```" + `markdown
---
title: Why sync is slow
link: why-sync-is-slow
type: debug_history
ontological_relations:
  - relates_to: manifest-format
tags:
  - performance
created_at: 2025-01-15T09:30:00Z
updated_at: 2025-01-15T09:30:00Z
uuid: 2f0c7e4a-8d3b-4c1e-9a57-6b1d2e3f4a5b
---
Body text in standard Markdown.
` + "```" + `

## Rules

1. **The front matter is mandatory** and starts with the first ` + "`---`" + ` line of the file.
2. **Required keys:** title, link, type, created_at, updated_at, uuid. Unknown keys are rejected.
3. **link** is the slug of the title: lowercase ASCII letters and digits joined by single dashes.
   The file name without ` + "`.md`" + ` must equal the link.
4. **type** must be one of: ` + strings.Join(models.KnownTypeNames(), ", ") + `.
   The document must live in the directory of the same name.
5. **Timestamps** are RFC 3339 in UTC with second precision.
6. **uuid** is a random (v4) UUID and never the nil UUID.
7. **Relations** reference other documents by link. Use the link_documents tool so both sides stay in sync.
8. **Body** must not contain a line consisting only of ` + "`---`" + `.
`
