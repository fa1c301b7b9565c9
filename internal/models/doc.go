// Package models defines domain entities for the hoardsync bookmark mirror.
//
// The package contains three groups of types:
//
// 1. Source records read from the bookmarking service
//   - [Bookmark] : a saved link with crawled [Content], [Tag] list and assets
//   - [Page] : one cursor page of bookmarks
//
// 2. Target nodes submitted to the knowledge graph, a closed set of node kinds
//   - [PlainNode], [DateNode], [URLNode], [BooleanNode], [FileNode], [ReferenceNode]
//   - [Field] : attribute slot whose children are [Value] nodes
//
// Nodes with ids are validated by their constructors ([NewDocument], [NewField], [Reference], [File]),
// and [PlainNode.Validate] re-checks a whole tree before it is sent.
//
// 3. Persistent entities
//   - [SyncRun] : history of sync invocations with counters and terminal error
package models
