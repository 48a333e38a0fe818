package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/console-api/internal/domain/model"
	apperrors "github.com/target/console-api/internal/errors"
	"github.com/target/console-api/internal/mocks"
	"github.com/target/console-api/internal/testutil"
)

func TestTransformerRegistry(t *testing.T) {
	ctx := context.Background()
	reg := NewTransformerRegistry()

	out, err := reg.Transform(ctx, testutil.NewJob().WithPayload(`{"k":"v"}`).Build())
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(out))

	out, err = reg.Transform(ctx, testutil.NewJob().WithPayload(`null`).Build())
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out))

	proj, err := NewProjectionTransformer("settings")
	require.NoError(t, err)
	reg.Register("render", proj)

	out, err = reg.Transform(ctx, testutil.NewJob().WithType("render").WithPayload(`{"settings":{"dpi":300},"other":1}`).Build())
	require.NoError(t, err)
	assert.JSONEq(t, `{"dpi":300}`, string(out))
}

func TestDiagramTransformer(t *testing.T) {
	ref := model.DiagramRef{ProjectID: "p1", DiagramID: "d1"}
	job := testutil.NewJob().
		WithType(model.JobTypeDiagramElementsExtraction).
		WithPayload(`{"project_id":"p1","diagram_id":"d1"}`).
		Build()

	tests := []struct {
		name    string
		diagram *model.Diagram
		getErr  error
		want    string
		wantMsg string
	}{
		{
			name:    "preview url",
			diagram: &model.Diagram{ProjectID: "p1", ID: "d1", PreviewRef: "https://cdn/p1/d1.png"},
			want:    `{"preview_url":"https://cdn/p1/d1.png"}`,
		},
		{
			name:    "diagram missing",
			getErr:  apperrors.NotFound("diagram not found"),
			wantMsg: "Diagram not found",
		},
		{
			name:    "no preview",
			diagram: &model.Diagram{ProjectID: "p1", ID: "d1"},
			wantMsg: "Diagram preview URL not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diagrams := mocks.NewMockDiagramRepository(gomock.NewController(t))
			diagrams.EXPECT().GetDiagram(gomock.Any(), ref).Return(tt.diagram, tt.getErr)

			out, err := NewDiagramTransformer(diagrams, nil).Transform(context.Background(), job)
			if tt.wantMsg != "" {
				require.True(t, apperrors.IsPrecondition(err))
				assert.Equal(t, tt.wantMsg, err.Error())
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(out))
		})
	}
}

func TestDiagramTransformer_StoreErrorIsNotPrecondition(t *testing.T) {
	diagrams := mocks.NewMockDiagramRepository(gomock.NewController(t))
	diagrams.EXPECT().GetDiagram(gomock.Any(), gomock.Any()).Return(nil, errors.New("conn reset"))

	job := testutil.NewJob().WithPayload(`{"project_id":"p1","diagram_id":"d1"}`).Build()
	_, err := NewDiagramTransformer(diagrams, nil).Transform(context.Background(), job)
	require.Error(t, err)
	assert.False(t, apperrors.IsPrecondition(err))
}

func TestDiagramTransformer_SignsStoredKeys(t *testing.T) {
	ctrl := gomock.NewController(t)
	diagrams := mocks.NewMockDiagramRepository(ctrl)
	signer := mocks.NewMockPreviewSigner(ctrl)

	diagrams.EXPECT().GetDiagram(gomock.Any(), gomock.Any()).
		Return(&model.Diagram{PreviewRef: "previews/d1.png"}, nil)
	signer.EXPECT().PreviewURL(gomock.Any(), "previews/d1.png").Return("", errors.New("no credentials"))

	job := testutil.NewJob().WithPayload(`{"project_id":"p1","diagram_id":"d1"}`).Build()
	_, err := NewDiagramTransformer(diagrams, signer).Transform(context.Background(), job)
	require.ErrorContains(t, err, "no credentials")
}

func TestDiagramRefFromPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    model.DiagramRef
		wantErr bool
	}{
		{"valid", `{"project_id":"p","diagram_id":"d"}`, model.DiagramRef{ProjectID: "p", DiagramID: "d"}, false},
		{"missing diagram", `{"project_id":"p"}`, model.DiagramRef{}, true},
		{"null", `null`, model.DiagramRef{}, true},
		{"not an object", `[1,2]`, model.DiagramRef{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiagramRefFromPayload(json.RawMessage(tt.payload))
			if tt.wantErr {
				assert.True(t, apperrors.IsPrecondition(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProjectionTransformer(t *testing.T) {
	_, err := NewProjectionTransformer("")
	require.Error(t, err)
	_, err = NewProjectionTransformer("foo[")
	require.Error(t, err)

	proj, err := NewProjectionTransformer("{url: source.href, pages: pages}")
	require.NoError(t, err)

	out, err := proj.Transform(context.Background(), testutil.NewJob().
		WithPayload(`{"source":{"href":"https://x/y"},"pages":[1,2]}`).Build())
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://x/y","pages":[1,2]}`, string(out))

	missing, err := NewProjectionTransformer("absent")
	require.NoError(t, err)
	_, err = missing.Transform(context.Background(), testutil.NewJob().WithPayload(`{"present":1}`).Build())
	assert.True(t, apperrors.IsPrecondition(err))
}
