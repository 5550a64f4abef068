// Package reference supplies reference records and social excerpts to the
// generators. FileSource reads curated records from disk, one directory per
// destination; PageSource scrapes paragraphs from configured travel pages.
package reference
