// Package extract turns files on disk into per-page text ready for
// ingestion.
//
// Plain text and markdown files are split into pages on form feed
// characters. PDF files yield one page per PDF page, so citations point at
// the page a reader would open.
//
//	reader, err := extract.ForFile("paper.pdf")
//	if err != nil {
//	    return err
//	}
//	input, err := reader.ReadFile(ctx, "paper.pdf")
package extract
