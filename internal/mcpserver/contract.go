package mcpserver

// RegistryFormatContract describes the releases JSON document shared by CI
// and every other reader of the registry.
const RegistryFormatContract = `# mukti Registry Format

The registry is a single UTF-8 JSON file (default ` + "`.releases.json`" + `),
indented with two spaces and ending with a newline.

` + "```" + `json
{
  "releases": [
    {
      "version": "1.2.0",
      "release_url": "https://github.com/example/app/releases/tag/1.2.0",
      "archive_prefix": "https://github.com/example/app/releases/download/1.2.0",
      "status": "active",
      "archives": [
        {
          "target": "x86_64-unknown-linux-gnu",
          "kind": "tar.gz",
          "name": "app-1.2.0-x86_64-unknown-linux-gnu.tar.gz",
          "checksums": {
            "sha256": "…",
            "blake2b": "…"
          }
        }
      ]
    }
  ]
}
` + "```" + `

## Rules

1. **releases** is ordered by insertion. The most recent release is the last
   entry, not the highest version.
2. **version** is a semantic version without a leading ` + "`v`" + ` and is unique.
3. **release_url** is optional. **archive_prefix** is required. Both are
   absolute URLs.
4. **status** is ` + "`active`" + ` or ` + "`yanked`" + `. A missing status means active.
5. **archives** may be empty; such a release is incomplete. Each
   ` + "`(target, kind)`" + ` pair appears once. **kind** is one of ` + "`tar.gz`" + `,
   ` + "`tar.xz`" + `, ` + "`tar.zst`" + `, ` + "`tar.bz2`" + `, ` + "`zip`" + `.
6. An archive downloads from ` + "`archive_prefix + \"/\" + name`" + `.
7. **checksums** is optional and maps an algorithm to a lowercase hex digest.
8. Field names are never renamed or removed.
`
