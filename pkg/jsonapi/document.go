package jsonapi

// NewResourceDocument creates a document whose primary data is one resource.
func NewResourceDocument(r Resource) Document {
	return Document{Data: r}
}

// NewCollectionDocument creates a document whose primary data is a collection.
// An empty collection is encoded as [] rather than omitted.
func NewCollectionDocument(resources []Resource) Document {
	if resources == nil {
		resources = []Resource{}
	}
	return Document{Data: resources, Meta: Meta{"total": len(resources)}}
}

// NewErrorDocument creates an error document.
func NewErrorDocument(errs ...Error) Document {
	return Document{Errors: errs}
}
