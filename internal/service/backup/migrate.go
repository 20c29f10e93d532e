package backup

import "encoding/json"

// upgrade rewrites the data collections of version v into version v+1.
type upgrade func(collections map[string]json.RawMessage) error

// upgrades[v] upgrades a v payload. Payloads written before versioning carry
// no version (0) and share the v1 layout.
var upgrades = map[int]upgrade{
    0: func(map[string]json.RawMessage) error { return nil },
}

// migrate walks collections from version up to CurrentVersion.
func migrate(version int, collections map[string]json.RawMessage) error {
    if version < 0 { return bad("version %d is invalid", version) }
    if version > CurrentVersion { return bad("version %d is newer than supported version %d", version, CurrentVersion) }
    for v := version; v < CurrentVersion; v++ {
        up, ok := upgrades[v]
        if !ok { return bad("no upgrade from version %d", v) }
        if err := up(collections); err != nil { return bad("upgrade from version %d: %v", v, err) }
    }
    return nil
}
