package stash

const sceneFragment = `
fragment DupeScene on Scene {
  id
  title
  date
  tags { id }
  galleries { id }
  files {
    id
    path
    size
    width
    height
    bit_rate
    frame_rate
    duration
    video_codec
    created_at
    fingerprints { type value }
  }
}`

const findDuplicateScenesQuery = `
query FindDuplicateScenes($distance: Int) {
  findDuplicateScenes(distance: $distance) { ...DupeScene }
}` + sceneFragment

const findScenesQuery = `
query FindScenes($filter: FindFilterType, $scene_filter: SceneFilterType) {
  findScenes(filter: $filter, scene_filter: $scene_filter) {
    count
    scenes { ...DupeScene }
  }
}` + sceneFragment

const bulkSceneUpdateMutation = `
mutation BulkSceneUpdate($input: BulkSceneUpdateInput!) {
  bulkSceneUpdate(input: $input) { id }
}`

const findTagsQuery = `
query FindTags($filter: FindFilterType, $tag_filter: TagFilterType) {
  findTags(filter: $filter, tag_filter: $tag_filter) {
    count
    tags { id name }
  }
}`

const tagCreateMutation = `
mutation TagCreate($input: TagCreateInput!) {
  tagCreate(input: $input) { id name }
}`

const tagDestroyMutation = `
mutation TagDestroy($input: TagDestroyInput!) {
  tagDestroy(input: $input)
}`

const sceneCreateMutation = `
mutation SceneCreate($input: SceneCreateInput!) {
  sceneCreate(input: $input) { id }
}`

const querySQLQuery = `
query QuerySQL($sql: String!) {
  querySQL(sql: $sql) { columns rows }
}`
