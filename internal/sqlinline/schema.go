package sqlinline

const QCreateSchema = `--sql a507b615-e860-4352-8664-4f82b7fce2f0
create table if not exists source_uploads (
    ref         text primary key,
    filename    text not null,
    storage_key text not null,
    size_bytes  bigint not null default 0,
    duration_s  double precision not null default 0,
    width       int not null default 0,
    height      int not null default 0,
    video_kbps  double precision not null default 0,
    audio_kbps  double precision not null default 0,
    created_at  timestamptz not null default now()
);
create table if not exists compress_jobs (
    id               text primary key,
    state            text not null,
    progress_percent int not null default 0,
    phase            text not null default '',
    result_ref       text not null default '',
    error            text not null default '',
    source_ref       text not null,
    filename         text not null default '',
    target_size_mb   double precision not null,
    output_bytes     bigint not null default 0,
    created_at       timestamptz not null default now(),
    updated_at       timestamptz not null default now(),
    completed_at     timestamptz
);
create index if not exists compress_jobs_completed_at_idx on compress_jobs (completed_at);
`
