package field

// Separator joins a reference name and a referenced key column into the name
// of the generated foreign-key column.
const Separator = "_"

// Reference declares that an entity type embeds the primary key of another
// entity type as foreign-key columns.
type Reference struct {
	Name string // Reference name, e.g. "customer".
	Type string // Name of the referenced entity type, e.g. "User".
}

// Ref returns a reference named name to the entity type typ.
func Ref(name, typ string) Reference {
	return Reference{Name: name, Type: typ}
}

// ForeignKey returns the column that stores the referenced key column key.
func (r Reference) ForeignKey(key string) string {
	return r.Name + Separator + key
}

// ForeignKeys returns the foreign-key descriptors generated for the given
// referenced primary-key descriptors. AUTO_INCREMENT is stripped, since a
// foreign key is never assigned by the referencing table.
func (r Reference) ForeignKeys(keys []Descriptor) []Descriptor {
	fks := make([]Descriptor, 0, len(keys))
	for _, k := range keys {
		fk := k.Without(AutoIncrement)
		fk.Name = r.ForeignKey(k.Name)
		fk.DefaultFunc = nil
		fks = append(fks, fk)
	}
	return fks
}
