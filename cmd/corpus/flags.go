package main

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/bull/corpus-pipeline/internal/tokenizer"
)

// Flag defaults are empty; unset flags fall through to env, config file and defaults.

func addSourceFlags(fs *pflag.FlagSet) {
	fs.String("root", "", "dataset root containing split directories")
	fs.StringSlice("splits", nil, "split directories in read order (default train,test,dev)")
	fs.String("text-field", "", "column holding the text (default text)")
}

func addBlobFlags(fs *pflag.FlagSet) {
	fs.String("blob-backend", "", "object storage backend: s3 or dir (default s3)")
	fs.String("bucket", "", "bucket holding the raw corpus")
	fs.String("key", "", "object key of the raw corpus (default combined_raw.txt)")
	fs.String("scratch-dir", "", "directory for the temporary corpus file")
	fs.String("s3-endpoint", "", "S3 endpoint URL (default http://localhost:4566)")
	fs.String("s3-region", "", "S3 region (default us-east-1)")
	fs.String("s3-access-key-id", "", "S3 access key id")
	fs.String("s3-secret-access-key", "", "S3 secret access key")
	fs.Bool("s3-path-style", true, "use path-style S3 addressing")
	fs.String("blob-dir", "", "root directory for the dir backend")
}

func addStagingFlags(fs *pflag.FlagSet) {
	fs.String("staging-driver", "", "relational backend: mysql or sqlite (default mysql)")
	fs.String("table", "", "staging table (default texts)")
	fs.Int("staging-batch-size", 0, "rows per insert transaction (default 1000)")
	fs.String("mysql-host", "", "MySQL host (default localhost)")
	fs.Int("mysql-port", 0, "MySQL port (default 3306)")
	fs.String("mysql-user", "", "MySQL user (default root)")
	fs.String("mysql-password", "", "MySQL password")
	fs.String("mysql-database", "", "MySQL database (default staging)")
	fs.String("sqlite-path", "", "SQLite database file (default staging.db)")
}

func addCuratedFlags(fs *pflag.FlagSet) {
	fs.String("curated-backend", "", "document store: mongo or qdrant (default mongo)")
	fs.String("collection", "", "curated collection (default wikitext)")
	fs.Int("curated-batch-size", 0, "documents per bulk insert (default 100)")
	fs.String("metadata-source", "", "metadata.source value (default staging driver name)")
	fs.String("mongo-uri", "", "MongoDB URI (default mongodb://localhost:27017)")
	fs.String("mongo-database", "", "MongoDB database (default curated)")
	fs.String("qdrant-host", "", "Qdrant host (default localhost)")
	fs.Int("qdrant-port", 0, "Qdrant gRPC port (default 6334)")
	fs.String("qdrant-api-key", "", "Qdrant API key")
	fs.Bool("qdrant-tls", false, "connect to Qdrant over TLS")
	fs.String("tokenizer", "", "tokenizer name (default cl100k_base; one of "+strings.Join(tokenizer.Names(), ", ")+")")
	fs.Int("max-length", 0, "maximum tokens per document (default 128)")
}
