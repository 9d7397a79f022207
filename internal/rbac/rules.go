package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"test:view",
		"session:run",
		"results:view-own",
	},
	"teacher": {
		"test:view",
		"results:view-all",
		"grade:apply",
	},
	"admin": {
		"*", // everything
	},
}
