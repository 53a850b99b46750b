// Package ezdb maps declaratively described record types onto a pluggable
// relational backend.
//
// An entity type is defined once in a Registry:
//
//	users := reg.MustDefine(ezdb.Schema{
//		Name:    "User",
//		Primary: []string{"id"},
//		Unique:  []string{"email"},
//		Fields: []field.Descriptor{
//			field.Int("id").Unsigned().AutoIncrement().Descriptor(),
//			field.Varchar("name", 64).Descriptor(),
//			field.Varchar("email", 255).NotNull().Descriptor(),
//		},
//	})
//
// Instances are created with EntityType.New or read with EntityType.Select.
// Instances with the same identity (the values of the primary keys that are
// not auto-incremented, and of the unique keys) are shared through a per-type
// identity cache, and every instance tracks whether it is new, dirty,
// deleted or closed:
//
//	u, err := users.New(db, ezdb.Values{"name": "Ann", "email": "a@x.com"})
//	if err != nil {
//		return err
//	}
//	if res := u.Insert(ctx); !res.OK() {
//		return res.Err
//	}
//
// Types that reference other types are read with a single joined select,
// and each result row is rebuilt into a nested instance graph.
package ezdb
