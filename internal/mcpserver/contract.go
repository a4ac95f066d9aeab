package mcpserver

// DocumentFormatContract describes the canonical map document JSON that
// LLM consumers should produce when importing or editing maps.
const DocumentFormatContract = `# Mapforge Document Format

Every stored map is a single JSON object in the canonical shape below.
Legacy shapes (a ` + "`{code,msg,data}`" + ` envelope, or flat documents without
` + "`mapInfo`" + `) are accepted on import and normalized into this one.

## Structure

` + "```" + `json
{
  "mapInfo": {
    "id": "yard-1",
    "name": "North yard",
    "version": "1.0",
    "width": 1920, "height": 1080,
    "scale": 1, "offsetX": 0, "offsetY": 0
  },
  "layerGroups": [{"id": "g1", "name": "Default layer group", "visible": true}],
  "layers": [{
    "id": "l1", "name": "Default layer", "type": "point",
    "visible": true, "locked": false, "zIndex": 0, "opacity": 1,
    "layerGroupId": "g1", "elementIds": ["p1"]
  }],
  "elements": {
    "points": [{"id": "p1", "layerId": "l1", "name": "Point-0001", "x": 10, "y": 20, "type": "Halt point", "status": "active"}],
    "paths": [],
    "locations": []
  },
  "metadata": {"createdAt": "2026-01-01T00:00:00Z", "updatedAt": "2026-01-01T00:00:00Z"}
}
` + "```" + `

## Rules

1. **Ids are unique across all three element collections.** Duplicates are
   renamed on load.
2. **Every element has a ` + "`layerId`" + `** naming an existing layer, and that
   layer lists the element in ` + "`elementIds`" + `. Orphans are moved to the
   default layer.
3. **Layer types** are ` + "`background`, `path`, `point`, `location`, `region`" + `.
4. **Paths** carry ` + "`geometry.controlPoints`" + ` (at least two vertices) and
   ` + "`startPointId` / `endPointId`" + `. ` + "`length`" + ` is recomputed on save.
5. **Locations** carry ` + "`geometry.vertices`" + `; ` + "`x`/`y`" + ` is the polygon
   centroid and is recomputed on save.
6. **Generated point names** follow ` + "`Point-####`" + `.
7. **Coordinates** are canvas units; ` + "`z`" + ` is optional everywhere.

## Element kinds

Tools that take a ` + "`kind`" + ` argument accept ` + "`point`, `path`" + ` or ` + "`location`" + `.
`
