package descriptions

// Tool descriptions shown to MCP clients, with examples and workflows.

const (
	PDFSearchDirectoryDescription = `Find PDF documents available for extraction.

**When to use:** Before any extraction, to locate certificate or report PDFs in the configured directory.

**Why it's useful:** Lists only readable-looking PDFs inside the allowed directory, with optional fuzzy filtering by file name.

**Examples:**
• List everything: "Which PDFs can I extract from?"
• Narrow by name: "Find the mill certificates for project 2041" → query "2041 mill"

**Common workflows:**
1. pdf_search_directory → pdf_detect_fields → pdf_find_pages → pdf_extract_by_field

**Best practices:** Paths in the result can be passed unchanged to the other tools.`

	PDFDetectFieldsDescription = `Discover which field labels a PDF carries.

**When to use:** You do not know which field names a document uses, or a query keeps returning no matches.

**Why it's useful:** Reads every page (falling back to OCR on scanned pages) and returns the distinct "LABEL: value" labels, sorted. The configured field vocabulary is returned alongside so you can see which labels are directly queryable.

**Examples:**
• "What fields does certificates.pdf have?" → ["GRADE", "HEAT NO", "PLATE NO"]

**Common workflows:**
1. pdf_detect_fields → choose a label → pdf_find_pages with that field (set discover=true if it is not in the vocabulary)

**Best practices:** Detection on large scanned documents is slow because every page may need OCR.`

	PDFFindPagesDescription = `Find the pages of a PDF whose field matches a value, without writing any files.

**When to use:** Preview which pages an extraction would select and what values each page carries.

**Why it's useful:** Returns the matched page numbers (1-based, ascending) and a record of every vocabulary field per matched page; missing fields read "NA".

**Match modes:**
• field (default): the value must follow "FIELD:" or "FIELD -" on the same line
• text: the value may appear anywhere on the page
• line: some single line must contain the value

Matching is case-insensitive and the value is taken literally (no regex).

**Examples:**
• "Which pages have heat number AB-123?" → field "HEAT NO", value "AB-123"
• "Pages mentioning ACME anywhere" → match "text", value "ACME"

**Best practices:** An outcome of "no_matches" is a normal answer, not an error.`

	PDFExtractByFieldDescription = `Extract the pages of a PDF whose field matches a value into a new PDF, with a summary table.

**When to use:** You want the matched pages as their own document, for example all certificate pages for one heat number.

**Why it's useful:** Writes, under <output>/<FIELD>_<value>/: the combined PDF with the original pages unchanged, summary.xlsx with one row per page, report.yaml describing the run, and optionally one PDF per page named from its field values.

**Examples:**
• "Pull every page for heat AB/123 into its own PDF" → field "HEAT NO", value "AB/123" (folder HEATNO_AB-123)
• "Split the matched pages into separate files" → split true

**Best practices:** Nothing is written when no page matches. Use pdf_find_pages first when unsure.`

	PDFServerInfoDescription = `Describe this server: configured directories, field vocabulary, OCR availability and tools.

**When to use:** At the start of a session, or when extraction on scanned pages returns empty results.

**Why it's useful:** Shows whether tesseract and pdftoppm are installed (both are needed for scanned pages), which fields are queryable, and which PDFs are in the default directory.`
)
