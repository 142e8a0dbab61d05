package automation

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/contentflow/core/internal/pkg/platform"
	"github.com/google/uuid"
)

// TimestampLayout is the ISO-8601 layout used for meta.ts.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// UserResolver returns the acting user of a request, if any.
type UserResolver interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// UserResolverFunc adapts a function to UserResolver.
type UserResolverFunc func(ctx context.Context) (string, bool)

func (f UserResolverFunc) CurrentUserID(ctx context.Context) (string, bool) { return f(ctx) }

// NewRequestID returns a random UUID, or a time+random string if the system
// random source is unavailable. It is never empty.
func NewRequestID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + strconv.FormatUint(rand.Uint64(), 36)
}

// Builder assembles workflow payloads and stamps their metadata.
type Builder struct {
	users  UserResolver
	now    func() time.Time
	newID  func() string
	source string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithUserResolver sets the session lookup used by AutoUser builds.
func WithUserResolver(r UserResolver) BuilderOption {
	return func(b *Builder) { b.users = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithIDGenerator overrides the correlation id generator.
func WithIDGenerator(gen func() string) BuilderOption {
	return func(b *Builder) {
		if gen != nil {
			b.newID = gen
		}
	}
}

// WithSource overrides meta.source.
func WithSource(source string) BuilderOption {
	return func(b *Builder) {
		if s := strings.TrimSpace(source); s != "" {
			b.source = s
		}
	}
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{now: time.Now, newID: NewRequestID, source: DefaultSource}
	for _, o := range opts {
		o(b)
	}
	return b
}

// BuildOptions tunes a single Build call.
type BuildOptions struct {
	// AutoUser resolves meta.user_id from the request context.
	AutoUser bool
	// Meta seeds metadata; missing values are filled in.
	Meta *Meta
}

// Build assembles a payload for identifier. Required business fields are
// taken from fields as-is; nothing is invented for them.
func (b *Builder) Build(ctx context.Context, id Identifier, operation string, fields map[string]any, opts BuildOptions) *Payload {
	p := &Payload{Identifier: id, Operation: operation, Fields: map[string]any{}}
	for k, v := range fields {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		p.Fields[k] = cloneValue(v)
	}
	if raw, ok := p.Fields["platforms"]; ok {
		p.Fields["platforms"] = platform.Normalize(platform.FromAny(raw)).Slice()
	}

	meta := &Meta{}
	if opts.Meta != nil {
		meta = (&Payload{Meta: opts.Meta}).Clone().Meta
	}
	b.stamp(meta, id)
	if opts.AutoUser && meta.UserID == nil && b.users != nil {
		if uid, ok := b.users.CurrentUserID(ctx); ok && uid != "" {
			meta.UserID = &uid
		}
	}
	p.Meta = meta
	return p
}

func (b *Builder) stamp(meta *Meta, id Identifier) {
	if meta.TS == "" {
		meta.TS = b.now().UTC().Format(TimestampLayout)
	}
	if meta.Source == "" {
		meta.Source = b.source
	}
	if meta.RequestID == "" {
		meta.RequestID = b.newID()
	}
	meta.Contract = id.Contract()
}

// Brand is the brand profile sent to angle generation.
type Brand struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Audience    string   `json:"audience"`
	Voice       string   `json:"voice"`
	Website     string   `json:"website"`
	Values      []string `json:"values"`
}

func (b Brand) fields() map[string]any {
	out := map[string]any{}
	putString(out, "name", b.Name)
	putString(out, "description", b.Description)
	putString(out, "audience", b.Audience)
	putString(out, "voice", b.Voice)
	putString(out, "website", b.Website)
	if len(b.Values) > 0 {
		out["values"] = append([]string(nil), b.Values...)
	}
	return out
}

type AnglesInput struct {
	CompanyID int64
	Brand     Brand
	Platforms []string
	Operation string
}

type IdeasInput struct {
	CompanyID   int64
	StrategyID  int64
	AngleNumber int
	Platforms   []string
	Operation   string
}

type ContentInput struct {
	CompanyID  int64
	StrategyID int64
	IdeaID     int64
	Platforms  []string
	Operation  string
}

type AutofillInput struct {
	Website   string
	CompanyID int64
	Operation string
}

type RealEstateInput struct {
	URL       string
	CompanyID int64
	Operation string
}

type AvatarVideoInput struct {
	Script    string
	Images    []string
	AvatarID  string
	Voice     string
	CompanyID int64
	Operation string
}

// Product is the subject of a product campaign.
type Product struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Price       string `json:"price"`
}

type CampaignInput struct {
	CompanyID int64
	Product   Product
	Platforms []string
	Images    []string
	Operation string
}

func (b *Builder) GenerateAngles(ctx context.Context, in AnglesInput) *Payload {
	f := map[string]any{}
	putID(f, "company_id", in.CompanyID)
	if brand := in.Brand.fields(); len(brand) > 0 {
		f["brand"] = brand
	}
	putPlatforms(f, in.Platforms)
	return b.Build(ctx, GenerateAngles, orDefault(in.Operation, "generate"), f, BuildOptions{AutoUser: true})
}

func (b *Builder) GenerateIdeas(ctx context.Context, in IdeasInput) *Payload {
	f := map[string]any{}
	putID(f, "company_id", in.CompanyID)
	putID(f, "strategy_id", in.StrategyID)
	if in.AngleNumber > 0 {
		f["angle_number"] = in.AngleNumber
	}
	putPlatforms(f, in.Platforms)
	return b.Build(ctx, GenerateIdeas, orDefault(in.Operation, "generate"), f, BuildOptions{AutoUser: true})
}

func (b *Builder) GenerateContent(ctx context.Context, in ContentInput) *Payload {
	f := map[string]any{}
	putID(f, "company_id", in.CompanyID)
	putID(f, "strategy_id", in.StrategyID)
	putID(f, "idea_id", in.IdeaID)
	putPlatforms(f, in.Platforms)
	return b.Build(ctx, GenerateContent, orDefault(in.Operation, "generate"), f, BuildOptions{AutoUser: true})
}

func (b *Builder) Autofill(ctx context.Context, in AutofillInput) *Payload {
	f := map[string]any{}
	putString(f, "website", in.Website)
	putID(f, "company_id", in.CompanyID)
	return b.Build(ctx, Autofill, orDefault(in.Operation, "autofill"), f, BuildOptions{AutoUser: true})
}

func (b *Builder) RealEstateIngest(ctx context.Context, in RealEstateInput) *Payload {
	f := map[string]any{}
	putString(f, "url", in.URL)
	putID(f, "company_id", in.CompanyID)
	return b.Build(ctx, RealEstateIngest, orDefault(in.Operation, "ingest"), f, BuildOptions{AutoUser: true})
}

func (b *Builder) AvatarVideo(ctx context.Context, in AvatarVideoInput) *Payload {
	f := map[string]any{}
	putString(f, "script", in.Script)
	if len(in.Images) > 0 {
		f["images"] = append([]string(nil), in.Images...)
		f["image_count"] = len(in.Images)
	}
	putString(f, "avatar_id", in.AvatarID)
	putString(f, "voice", in.Voice)
	putID(f, "company_id", in.CompanyID)
	return b.Build(ctx, AvatarVideo, orDefault(in.Operation, "render"), f, BuildOptions{AutoUser: true})
}

func (b *Builder) ProductCampaign(ctx context.Context, in CampaignInput) *Payload {
	f := map[string]any{}
	putID(f, "company_id", in.CompanyID)
	product := map[string]any{}
	putString(product, "name", in.Product.Name)
	putString(product, "description", in.Product.Description)
	putString(product, "url", in.Product.URL)
	putString(product, "price", in.Product.Price)
	if len(product) > 0 {
		f["product"] = product
	}
	putPlatforms(f, in.Platforms)
	if len(in.Images) > 0 {
		f["images"] = append([]string(nil), in.Images...)
	}
	return b.Build(ctx, ProductCampaign, orDefault(in.Operation, "generate"), f, BuildOptions{AutoUser: true})
}

func putID(m map[string]any, key string, id int64) {
	if id > 0 {
		m[key] = id
	}
}

func putString(m map[string]any, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		m[key] = v
	}
}

func putPlatforms(m map[string]any, platforms []string) {
	if len(platforms) > 0 {
		m["platforms"] = platforms
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
