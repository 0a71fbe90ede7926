package discogs

// Pagination is the paging block shared by every listing endpoint. Pages is
// nil when the server omits it.
type Pagination struct {
	Page    int  `json:"page"`
	Pages   *int `json:"pages"`
	PerPage int  `json:"per_page"`
	Items   int  `json:"items"`
}

type APIArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	ANV  string `json:"anv"`
	Join string `json:"join"`
	Role string `json:"role"`
}

type APILabel struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	CatNo string `json:"catno"`
}

type APIFormat struct {
	Name         string   `json:"name"`
	Qty          string   `json:"qty"`
	Text         string   `json:"text"`
	Descriptions []string `json:"descriptions"`
}

// APIBasicInformation is the release summary embedded in collection and
// wantlist listings.
type APIBasicInformation struct {
	ID         int64       `json:"id"`
	Title      string      `json:"title"`
	Year       int         `json:"year"`
	Thumb      string      `json:"thumb"`
	CoverImage string      `json:"cover_image"`
	Artists    []APIArtist `json:"artists"`
	Labels     []APILabel  `json:"labels"`
	Formats    []APIFormat `json:"formats"`
	Genres     []string    `json:"genres"`
	Styles     []string    `json:"styles"`
}

// APINote is a collection field value attached to an instance.
type APINote struct {
	FieldID int    `json:"field_id"`
	Value   string `json:"value"`
}

type APICollectionRelease struct {
	ID               int64               `json:"id"`
	InstanceID       int64               `json:"instance_id"`
	FolderID         int64               `json:"folder_id"`
	DateAdded        string              `json:"date_added"`
	Rating           int                 `json:"rating"`
	Notes            []APINote           `json:"notes"`
	BasicInformation APIBasicInformation `json:"basic_information"`
}

type CollectionPage struct {
	Pagination Pagination             `json:"pagination"`
	Releases   []APICollectionRelease `json:"releases"`
}

type APIWant struct {
	ID               int64               `json:"id"`
	DateAdded        string              `json:"date_added"`
	Rating           int                 `json:"rating"`
	Notes            string              `json:"notes"`
	BasicInformation APIBasicInformation `json:"basic_information"`
}

type WantsPage struct {
	Pagination Pagination `json:"pagination"`
	Wants      []APIWant  `json:"wants"`
}

type APITrack struct {
	Position string `json:"position"`
	Type     string `json:"type_"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

type APIVideo struct {
	URI      string `json:"uri"`
	Title    string `json:"title"`
	Duration int    `json:"duration"`
}

type APICompany struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	EntityTypeName string `json:"entity_type_name"`
	CatNo          string `json:"catno"`
}

type APIIdentifier struct {
	Type        string `json:"type"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

type APIImage struct {
	Type   string `json:"type"`
	URI    string `json:"uri"`
	URI150 string `json:"uri150"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// APIRelease is the full release detail. Slice fields are nil when the key
// is absent or null and non-nil (possibly empty) when present.
type APIRelease struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Year         int             `json:"year"`
	Country      string          `json:"country"`
	Thumb        string          `json:"thumb"`
	Artists      []APIArtist     `json:"artists"`
	Labels       []APILabel      `json:"labels"`
	Formats      []APIFormat     `json:"formats"`
	Genres       []string        `json:"genres"`
	Styles       []string        `json:"styles"`
	Tracklist    []APITrack      `json:"tracklist"`
	Videos       []APIVideo      `json:"videos"`
	ExtraArtists []APIArtist     `json:"extraartists"`
	Companies    []APICompany    `json:"companies"`
	Identifiers  []APIIdentifier `json:"identifiers"`
	Notes        *string         `json:"notes"`
	Images       []APIImage      `json:"images"`

	// Raw is the undecoded response body.
	Raw []byte `json:"-"`
}

type APIField struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Position int    `json:"position"`
	Public   bool   `json:"public"`
}

type FieldsResponse struct {
	Fields []APIField `json:"fields"`
}

type addToCollectionResponse struct {
	InstanceID  int64  `json:"instance_id"`
	ResourceURL string `json:"resource_url"`
}

type errorBody struct {
	Message string `json:"message"`
}
