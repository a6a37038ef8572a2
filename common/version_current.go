package common

// CurrentVersion represents the current build version.
var CurrentVersion = Version{
	Major:  0,
	Minor:  1,
	Patch:  0,
	Suffix: "dev",
}
