// Package kdp is a client for the Koverse Data Platform (KDP). It wraps the
// low-level REST client in package api with the things most callers actually
// want.
//
// 1. Authentication
//
//	A Conn can log in with an email and password, exchange an identity from
//	an authenticating proxy, or exchange a token obtained from a Keycloak
//	realm (see package keycloak). Preset bundles the settings a host
//	application stores for a connection, and ResolveJWT turns one into a
//	token.
//
// 2. Reading
//
//	ReadDataset pages through a dataset with the read-in-sequence endpoint
//	until the Platform reports there are no more records. ReadSource does the
//	same lazily, one row at a time, and can persist its position with a
//	Checkpointer so that a later read resumes where it stopped.
//	ReadDatasetParallel reads the ranges between a dataset's split points
//	concurrently.
//
// 3. Writing
//
//	BatchWrite and BatchWriteV2 cut a slice of rows into batches and write
//	each one, returning the set of partitions written to. BatchWriteV2 can
//	gzip the payload and attach security label information.
//
// 4. Ingesting
//
//	An Ingester pulls records from any Source (files, S3 objects, Kafka
//	topics, HTTP posts; see the sub-packages) and writes them to a dataset in
//	batches. Main wires a Source, a Preset and logging together for the
//	commands in package cmd.
package kdp
