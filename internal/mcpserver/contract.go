package mcpserver

// NoteFormatContract describes the Markdown document format notes are
// serialized to in the remote repository.
const NoteFormatContract = `# Ehwaz Note Document Format

Every note pushed to the remote repository is serialized as a Markdown
document with a structured header block followed by a rendered body.

## Structure

` + "```" + `markdown
---
title: Human-readable title
url: https://example.com/source      # optional source link
tags: [tag-one, tag-two]             # bracketed list; may be empty []
category: tutorial                   # optional; drives the remote directory
date: 2025-01-20                     # creation date, day precision
id: 7f3c2a19-...                     # stable note id; DO NOT invent or change
created: 2025-01-20T10:15:00Z        # full creation timestamp
modified: 2025-01-21T09:00:00Z       # full modification timestamp
---

# Human-readable title

One-paragraph summary.

**Category**: tutorial
**Tags**: tag-one, tag-two
**Source**: https://example.com/source

---

Body text in standard Markdown.
` + "```" + `

## Rules

1. The header block is the source of truth for structured fields; the body
   below it is presentation and is regenerated on every push.
2. Values containing colons, quotes, or newlines are double-quoted with
   backslash escapes.
3. A document WITHOUT a header id becomes a NEW note on pull rather than an
   update. Preserve the id when hand-editing remote files.
4. File paths follow notes/{category-dir}/{yyyy-MM-dd}-{id8}-{slug}.md; the
   8-hex id fragment is what keeps re-syncs pointed at the same file.
5. Encoding is UTF-8. Binary content is not supported.
`
