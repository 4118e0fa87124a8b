// Package adapter contains the source adapters that turn fetched pages
// into raw observations, plus the text heuristics they share. Extraction
// policy lives behind narrow funcs so dedicated NLP can replace it without
// touching any adapter.
package adapter
