// Package mongojob implements ports.JobRepository against MongoDB, the
// durable alternative to internal/repository/memjob for deployments that
// need job state to survive a process restart.
package mongojob

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"adpipeline/internal/domain"
)

type Repository struct {
	collection *mongo.Collection
}

func NewRepository(client *mongo.Client, dbName, collectionName string) *Repository {
	return &Repository{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	return mongo.Connect(ctx, opts...)
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "ownerId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

type productDoc struct {
	Company  string `bson:"company"`
	Product  string `bson:"product"`
	Category string `bson:"category"`
}

type profileDoc struct {
	Interests          []string          `bson:"interests,omitempty"`
	Demographics       map[string]string `bson:"demographics,omitempty"`
	ContentPreferences []string          `bson:"contentPreferences,omitempty"`
	Values             []string          `bson:"values,omitempty"`
	ProductAffinities  []string          `bson:"productAffinities,omitempty"`
}

type placementDoc struct {
	InsertionPoint    float64 `bson:"insertionPoint"`
	BufferStart       float64 `bson:"bufferStart"`
	BufferEnd         float64 `bson:"bufferEnd"`
	Confidence        float64 `bson:"confidence"`
	Reason            string  `bson:"reason"`
	VisualDescription string  `bson:"visualDescription,omitempty"`
	RejectionNotes    string  `bson:"rejectionNotes,omitempty"`
	SummaryBefore     string  `bson:"summaryBefore"`
	SummaryAfter      string  `bson:"summaryAfter"`
	OverallAnalysis   string  `bson:"overallAnalysis,omitempty"`
}

type editedRangeDoc struct {
	StartSegment  int `bson:"startSegment"`
	EndSegment    int `bson:"endSegment"`
	NewEndSegment int `bson:"newEndSegment"`
}

type jobErrorDoc struct {
	Kind    string `bson:"kind"`
	Message string `bson:"message"`
}

type jobDoc struct {
	ID           string          `bson:"_id"`
	OwnerID      string          `bson:"ownerId"`
	Status       string          `bson:"status"`
	ProgressPct  int             `bson:"progressPct"`
	VideoPath    string          `bson:"videoPath"`
	SubtitlePath string          `bson:"subtitlePath"`
	PathOriginal string          `bson:"pathOriginal"`
	PathEdited   string          `bson:"pathEditedClip"`
	PathHLS      string          `bson:"pathHlsEdited"`
	PathMerged   string          `bson:"pathMerged"`
	Product      productDoc      `bson:"product"`
	Profile      profileDoc      `bson:"profile,omitempty"`
	BufferBefore float64         `bson:"bufferBefore"`
	BufferAfter  float64         `bson:"bufferAfter"`
	UseAI        bool            `bson:"useAI"`
	Placement    *placementDoc   `bson:"placement,omitempty"`
	SegmentCount int             `bson:"segmentCount"`
	EditedRange  *editedRangeDoc `bson:"editedRange,omitempty"`
	CreatedAt    int64           `bson:"createdAt"`
	CompletedAt  *int64          `bson:"completedAt,omitempty"`
	Error        *jobErrorDoc    `bson:"error,omitempty"`
}

func (r *Repository) Create(ctx context.Context, job domain.Job) error {
	doc := toDoc(job)
	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Job, error) {
	var doc jobDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Job{}, domain.ErrNotFound
		}
		return domain.Job{}, err
	}
	return fromDoc(doc), nil
}

func (r *Repository) Update(ctx context.Context, job domain.Job) error {
	doc := toDoc(job)
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": job.ID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toDoc(j domain.Job) jobDoc {
	doc := jobDoc{
		ID:           j.ID,
		OwnerID:      j.OwnerID,
		Status:       string(j.Status),
		ProgressPct:  j.ProgressPct,
		VideoPath:    j.VideoPath,
		SubtitlePath: j.SubtitlePath,
		PathOriginal: j.Paths.Original,
		PathEdited:   j.Paths.EditedClip,
		PathHLS:      j.Paths.HLSEdited,
		PathMerged:   j.Paths.Merged,
		Product:      productDoc{Company: j.Product.Company, Product: j.Product.Product, Category: j.Product.Category},
		Profile: profileDoc{
			Interests:          j.Profile.Interests,
			Demographics:       j.Profile.Demographics,
			ContentPreferences: j.Profile.ContentPreferences,
			Values:             j.Profile.Values,
			ProductAffinities:  j.Profile.ProductAffinities,
		},
		BufferBefore: j.BufferBefore,
		BufferAfter:  j.BufferAfter,
		UseAI:        j.UseAI,
		SegmentCount: j.SegmentCount,
		CreatedAt:    j.CreatedAt.Unix(),
	}
	if j.Placement != nil {
		doc.Placement = &placementDoc{
			InsertionPoint:    j.Placement.InsertionPoint,
			BufferStart:       j.Placement.BufferStart,
			BufferEnd:         j.Placement.BufferEnd,
			Confidence:        j.Placement.Confidence,
			Reason:            j.Placement.Reason,
			VisualDescription: j.Placement.VisualDescription,
			RejectionNotes:    j.Placement.RejectionNotes,
			SummaryBefore:     j.Placement.SummaryBefore,
			SummaryAfter:      j.Placement.SummaryAfter,
			OverallAnalysis:   j.Placement.OverallAnalysis,
		}
	}
	if j.EditedRange != nil {
		doc.EditedRange = &editedRangeDoc{
			StartSegment:  j.EditedRange.StartSegment,
			EndSegment:    j.EditedRange.EndSegment,
			NewEndSegment: j.EditedRange.NewEndSegment,
		}
	}
	if j.CompletedAt != nil {
		unix := j.CompletedAt.Unix()
		doc.CompletedAt = &unix
	}
	if j.Error != nil {
		doc.Error = &jobErrorDoc{Kind: string(j.Error.Kind), Message: j.Error.Message}
	}
	return doc
}

func fromDoc(doc jobDoc) domain.Job {
	job := domain.Job{
		ID:           doc.ID,
		OwnerID:      doc.OwnerID,
		Status:       domain.JobStatus(doc.Status),
		ProgressPct:  doc.ProgressPct,
		VideoPath:    doc.VideoPath,
		SubtitlePath: doc.SubtitlePath,
		Paths: domain.JobPaths{
			Original:   doc.PathOriginal,
			EditedClip: doc.PathEdited,
			HLSEdited:  doc.PathHLS,
			Merged:     doc.PathMerged,
		},
		Product: domain.Product{Company: doc.Product.Company, Product: doc.Product.Product, Category: doc.Product.Category},
		Profile: domain.ViewerProfile{
			Interests:          doc.Profile.Interests,
			Demographics:       doc.Profile.Demographics,
			ContentPreferences: doc.Profile.ContentPreferences,
			Values:             doc.Profile.Values,
			ProductAffinities:  doc.Profile.ProductAffinities,
		},
		BufferBefore: doc.BufferBefore,
		BufferAfter:  doc.BufferAfter,
		UseAI:        doc.UseAI,
		SegmentCount: doc.SegmentCount,
		CreatedAt:    time.Unix(doc.CreatedAt, 0).UTC(),
	}
	if doc.Placement != nil {
		job.Placement = &domain.Placement{
			InsertionPoint:    doc.Placement.InsertionPoint,
			BufferStart:       doc.Placement.BufferStart,
			BufferEnd:         doc.Placement.BufferEnd,
			Confidence:        doc.Placement.Confidence,
			Reason:            doc.Placement.Reason,
			VisualDescription: doc.Placement.VisualDescription,
			RejectionNotes:    doc.Placement.RejectionNotes,
			SummaryBefore:     doc.Placement.SummaryBefore,
			SummaryAfter:      doc.Placement.SummaryAfter,
			OverallAnalysis:   doc.Placement.OverallAnalysis,
		}
	}
	if doc.EditedRange != nil {
		job.EditedRange = &domain.EditedRange{
			StartSegment:  doc.EditedRange.StartSegment,
			EndSegment:    doc.EditedRange.EndSegment,
			NewEndSegment: doc.EditedRange.NewEndSegment,
		}
	}
	if doc.CompletedAt != nil {
		t := time.Unix(*doc.CompletedAt, 0).UTC()
		job.CompletedAt = &t
	}
	if doc.Error != nil {
		job.Error = &domain.JobError{Kind: domain.ErrorKind(doc.Error.Kind), Message: doc.Error.Message}
	}
	return job
}
