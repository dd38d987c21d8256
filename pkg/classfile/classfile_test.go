package classfile_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/classpath-changes/pkg/classfile"
	"github.com/ritzau/classpath-changes/pkg/classfile/classfiletest"
)

func TestParseHeaderAndMembers(t *testing.T) {
	data := classfiletest.Class{
		Name:       "com/example/Foo",
		Super:      "com/example/Base",
		Interfaces: []string{"java/io/Serializable", "java/lang/Runnable"},
		Signature:  "Lcom/example/Base<Ljava/lang/String;>;",
		SourceFile: "Foo.java",
		Fields: []classfiletest.Member{
			{Access: classfile.AccPublic | classfile.AccStatic | classfile.AccFinal, Name: "MAX", Descriptor: "J",
				Constant: &classfile.Constant{Kind: classfile.ConstLong, Int: 1 << 40}},
			{Access: classfile.AccPrivate, Name: "secret", Descriptor: "Ljava/lang/String;"},
		},
		Methods: []classfiletest.Member{
			{Access: classfile.AccPublic, Name: "run", Descriptor: "()V", Code: []byte{0xB1}},
			{Access: classfile.AccPublic, Name: "load", Descriptor: "()I", Exceptions: []string{"java/io/IOException"}},
		},
	}.Bytes()

	cf, err := classfile.Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "com/example/Foo", cf.ThisClass)
	assert.Equal(t, "com/example/Base", cf.SuperClass)
	assert.Equal(t, []string{"java/io/Serializable", "java/lang/Runnable"}, cf.Interfaces)
	assert.Equal(t, "Lcom/example/Base<Ljava/lang/String;>;", cf.Signature)
	assert.Equal(t, "Foo.java", cf.SourceFile)
	assert.Nil(t, cf.KotlinMetadata)

	require.Len(t, cf.Fields, 2)
	require.NotNil(t, cf.Fields[0].Constant)
	assert.Equal(t, "J:1099511627776", cf.Fields[0].Constant.String())
	assert.True(t, cf.Fields[1].IsPrivate())

	require.Len(t, cf.Methods, 2)
	assert.Equal(t, "run", cf.Methods[0].Name)
	assert.Equal(t, []string{"java/io/IOException"}, cf.Methods[1].Exceptions)
}

func TestParseNestingAttributes(t *testing.T) {
	data := classfiletest.Class{
		Name: "com/example/Foo$1",
		InnerClasses: []classfile.InnerClass{
			{Inner: "com/example/Foo$1", Access: classfile.AccStatic},
		},
		EnclosingMethod: &classfile.EnclosingMethod{Class: "com/example/Foo", MethodName: "run", MethodDescriptor: "()V"},
	}.Bytes()

	cf, err := classfile.Parse(data)
	require.NoError(t, err)

	self, ok := cf.SelfInnerClass()
	require.True(t, ok)
	assert.Empty(t, self.Outer)
	assert.Empty(t, self.Name)
	require.NotNil(t, cf.EnclosingMethod)
	assert.Equal(t, "com/example/Foo", cf.EnclosingMethod.Class)
	assert.Equal(t, "run", cf.EnclosingMethod.MethodName)
}

func TestParseKotlinMetadata(t *testing.T) {
	data := classfiletest.Class{
		Name: "com/example/UtilsKt",
		Kotlin: &classfile.KotlinMetadata{
			Kind:            2,
			MetadataVersion: []int{1, 9, 0},
			Data1:           []string{"\u0000\u0001proto"},
			Data2:           []string{"greet", "", "Lkotlin/String;"},
			PackageName:     "com.example",
			ExtraInt:        48,
		},
	}.Bytes()

	cf, err := classfile.Parse(data)
	require.NoError(t, err)
	require.NotNil(t, cf.KotlinMetadata)

	md := cf.KotlinMetadata
	assert.Equal(t, 2, md.Kind)
	assert.Equal(t, []int{1, 9, 0}, md.MetadataVersion)
	assert.Equal(t, []string{"\u0000\u0001proto"}, md.Data1)
	assert.Equal(t, []string{"greet", "", "Lkotlin/String;"}, md.Data2)
	assert.Equal(t, "com.example", md.PackageName)
	assert.Equal(t, 48, md.ExtraInt)
	assert.Contains(t, cf.Annotations, classfile.KotlinMetadataDescriptor)
}

func TestParseKotlinMetadataDefaultKind(t *testing.T) {
	data := classfiletest.Class{
		Name:   "com/example/Foo",
		Kotlin: &classfile.KotlinMetadata{Data2: []string{"Foo"}},
	}.Bytes()

	cf, err := classfile.Parse(data)
	require.NoError(t, err)
	require.NotNil(t, cf.KotlinMetadata)
	assert.Equal(t, 1, cf.KotlinMetadata.Kind, "absent k means a class")
}

func TestParseMalformed(t *testing.T) {
	valid := classfiletest.Class{Name: "a/B"}.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte{0xCA, 0xFE, 0xD0, 0x0D}, valid[4:]...)},
		{"truncated", valid[:len(valid)-3]},
		{"trailing bytes", append(append([]byte{}, valid...), 0x00)},
		{"not a class", []byte("PK\x03\x04 definitely a zip")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classfile.Parse(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, classfile.ErrMalformedClassFile), "got %v", err)
		})
	}
}

func TestParseModifiedUTF8Names(t *testing.T) {
	data := classfiletest.Class{
		Name:    "com/example/Grüße",
		Methods: []classfiletest.Member{classfiletest.Method("emoji\U0001F600", "()V")},
	}.Bytes()

	cf, err := classfile.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "com/example/Grüße", cf.ThisClass)
	assert.Equal(t, "emoji\U0001F600", cf.Methods[0].Name)
}
