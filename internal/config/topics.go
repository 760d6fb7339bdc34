package config

const (
	// TopicIngestDocument is the NSQ topic for brochure ingestion tasks
	// (chunk, embed and store one document).
	TopicIngestDocument = "ingest.document"

	// ChannelIngestWorker is the consumer channel of the ingest worker.
	ChannelIngestWorker = "ingest_worker"
)
