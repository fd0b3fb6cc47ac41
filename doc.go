// Package minirag is a local-first document question answering engine.
//
// Documents are ingested through a background worker: text extraction,
// metadata parsing, parent/child chunking and hybrid dense+sparse
// embedding into a per-document vector collection. Questions run a
// multi-round retrieval loop with reranking and parent context
// expansion, then stream a grounded answer over SSE.
//
// The engine is configured with a single YAML file (or a consul/etcd/
// zookeeper provider URI) and runs as one binary:
//
//	minirag serve --config config.yaml
//
// Most users only need the packages under pkg/: config, storage, rag,
// ingest, vectorstore and server.
package minirag
