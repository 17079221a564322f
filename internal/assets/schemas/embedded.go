// Package schemasassets embeds the JSON schemas hy3d validates against, so
// validation works from any working directory and in installed binaries.
package schemasassets

import _ "embed"

// JobManifestSchema is the schema for `hy3d run --job` manifests.
//
//go:embed job-manifest.schema.json
var JobManifestSchema []byte
