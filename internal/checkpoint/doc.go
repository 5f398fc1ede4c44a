// Package checkpoint persists pipeline progress so an interrupted run can be
// resumed.
//
// Each checkpoint is one JSON file named by its id. Files carry a schema
// version; unversioned files are migrated on load and files from a newer
// version are rejected with ErrIncompatibleSchema. Writes go through a temp
// file and rename, so a crash leaves either the old or the new record.
//
// Steps come in three shapes:
//   - all-or-nothing steps only use Completed and Data
//   - partial-list steps record processed paths in Items
//   - batch steps keep a Batch per sub-category with saved and total counts
//     and the remote ids created so far
package checkpoint
