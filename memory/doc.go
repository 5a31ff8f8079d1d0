// Package memory holds conversation memory for agents. ShortTermMemory is a
// rolling buffer of the most recent messages; it carries no embeddings and
// search is plain substring matching.
package memory
