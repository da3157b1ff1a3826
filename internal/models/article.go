package models

// Article is one newsletter post from a Substack export. ID is the database
// identity; PostID is the stable export identifier used as the upsert key.
type Article struct {
	ID        int64
	PostID    string
	Title     string
	Subtitle  string
	PostDate  string
	Type      string
	Audience  string
	URLSlug   string
	Markdown  string
	WordCount int
}

// Chunk is a token-bounded slice of one article. Heading is the h2/h3 label
// of the section the chunk came from, empty when the text preceded the first
// heading. (ArticleID, Index) is the natural upsert key.
type Chunk struct {
	ArticleID  int64
	Index      int
	Text       string
	Heading    string
	TokenCount int
	Embedding  []float32
}

// ChunkRef identifies a stored chunk together with its article metadata, as
// returned by similarity queries.
type ChunkRef struct {
	ArticleID    int64
	ChunkIndex   int
	Text         string
	Heading      string
	ArticleTitle string
	ArticleSlug  string
}

// RetrievalResult pairs a matched chunk with its cosine similarity to the
// query. Results live only for the duration of one query.
type RetrievalResult struct {
	Chunk      ChunkRef
	Similarity float64
}

// ChunkEmbedding is the slim row shape fetched for clustering: every stored
// chunk vector plus enough metadata to group by article.
type ChunkEmbedding struct {
	ArticleID    int64
	ArticleTitle string
	Embedding    []float32
}

// ClusterLabel is the structured output of the labeling collaborator for one
// cluster: a short topic label and suggested content gaps.
type ClusterLabel struct {
	Label string
	Gaps  []string
}
