package domain

// ChangeSetArtifact bundles a finalized change set with the metadata the
// output writers need to place it on disk.
type ChangeSetArtifact struct {
	OutputDir  string
	Repository string
	ChangeSet  ChangeSet
}
