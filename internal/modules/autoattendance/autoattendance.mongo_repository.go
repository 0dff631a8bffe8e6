package autoattendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	leavesCollection     = "leaves"
	attendanceCollection = "attendances"
)

type leaveDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	StudentID primitive.ObjectID `bson:"studentId"`
	StartDate time.Time          `bson:"startDate"`
	EndDate   time.Time          `bson:"endDate"`
	Status    string             `bson:"status"`
	Reason    string             `bson:"reason,omitempty"`
}

type attendanceDocument struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty"`
	StudentID primitive.ObjectID  `bson:"studentId"`
	Date      time.Time           `bson:"date"`
	Status    string              `bson:"status"`
	Source    string              `bson:"source,omitempty"`
	LeaveID   *primitive.ObjectID `bson:"leaveId,omitempty"`
	MarkedAt  time.Time           `bson:"markedAt,omitempty"`
}

// MongoStore implements Store on the "leaves" and "attendances" collections.
// Dates may carry a time of day, so every lookup matches the whole UTC day.
type MongoStore struct {
	leaves     *mongo.Collection
	attendance *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		leaves:     db.Collection(leavesCollection),
		attendance: db.Collection(attendanceCollection),
	}
}

func dayRange(day time.Time) (time.Time, time.Time) {
	start := civilDate(day)
	return start, start.Add(24 * time.Hour)
}

func (s *MongoStore) ListApprovedLeavesCovering(ctx context.Context, day time.Time) ([]LeaveRecord, error) {
	start, end := dayRange(day)
	filter := bson.M{
		"status":    string(LeaveApproved),
		"startDate": bson.M{"$lt": end},
		"endDate":   bson.M{"$gte": start},
	}
	opts := options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.leaves.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []leaveDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	leaves := make([]LeaveRecord, 0, len(docs))
	for _, doc := range docs {
		leaves = append(leaves, LeaveRecord{
			ID:        doc.ID.Hex(),
			StudentID: doc.StudentID.Hex(),
			StartDate: doc.StartDate.UTC(),
			EndDate:   doc.EndDate.UTC(),
			Status:    LeaveStatus(doc.Status),
			Reason:    doc.Reason,
		})
	}
	return leaves, nil
}

func (s *MongoStore) GetAttendance(ctx context.Context, studentID string, day time.Time) (AttendanceRecord, bool, error) {
	student, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return AttendanceRecord{}, false, fmt.Errorf("invalid student id %q: %w", studentID, err)
	}
	start, end := dayRange(day)

	var doc attendanceDocument
	err = s.attendance.FindOne(ctx, bson.M{
		"studentId": student,
		"date":      bson.M{"$gte": start, "$lt": end},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return AttendanceRecord{}, false, nil
	}
	if err != nil {
		return AttendanceRecord{}, false, err
	}

	rec := AttendanceRecord{
		ID:        doc.ID.Hex(),
		StudentID: doc.StudentID.Hex(),
		Date:      doc.Date.UTC(),
		Status:    AttendanceStatus(doc.Status),
		Source:    Source(doc.Source),
		MarkedAt:  doc.MarkedAt,
	}
	if rec.Status == "" {
		rec.Status = StatusUnmarked
	}
	if doc.LeaveID != nil {
		rec.LeaveID = doc.LeaveID.Hex()
	}
	return rec, true, nil
}

// replaceableStatuses are the stored statuses the job may replace without
// the overwrite policy. null matches documents that have no status yet.
var replaceableStatuses = bson.A{string(StatusUnmarked), string(StatusOnLeave), "", nil}

// EnsureIndexes creates the unique (studentId, date) index that backs the
// insert path of UpsertAttendance. It is safe to call on every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.attendance.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "studentId", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uq_attendance_student_date"),
	})
	if err != nil {
		return fmt.Errorf("failed to create attendance index: %w", err)
	}
	return nil
}

// UpsertAttendance matches on student and day. An existing document is
// updated only when its status is replaceable (or overwrite is set); a new
// one is inserted only when the day has no document at all. New documents
// get a driver-generated _id; rec.ID is not used.
func (s *MongoStore) UpsertAttendance(ctx context.Context, rec AttendanceRecord, overwrite bool) (bool, error) {
	student, err := primitive.ObjectIDFromHex(rec.StudentID)
	if err != nil {
		return false, fmt.Errorf("invalid student id %q: %w", rec.StudentID, err)
	}
	start, end := dayRange(rec.Date)

	set := bson.M{
		"status":   string(rec.Status),
		"source":   string(rec.Source),
		"markedAt": rec.MarkedAt,
	}
	if rec.LeaveID != "" {
		leave, err := primitive.ObjectIDFromHex(rec.LeaveID)
		if err != nil {
			return false, fmt.Errorf("invalid leave id %q: %w", rec.LeaveID, err)
		}
		set["leaveId"] = leave
	}

	sameDay := bson.M{
		"studentId": student,
		"date":      bson.M{"$gte": start, "$lt": end},
	}
	replaceable := bson.M{
		"studentId": student,
		"date":      bson.M{"$gte": start, "$lt": end},
	}
	if !overwrite {
		replaceable["status"] = bson.M{"$in": replaceableStatuses}
	}

	updated, err := s.attendance.UpdateOne(ctx, replaceable, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	if updated.MatchedCount > 0 {
		return true, nil
	}

	onInsert := bson.M{"date": start}
	for k, v := range set {
		onInsert[k] = v
	}
	inserted, err := s.attendance.UpdateOne(ctx, sameDay,
		bson.M{"$setOnInsert": onInsert},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return inserted.UpsertedCount > 0, nil
}
